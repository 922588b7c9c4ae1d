package mocks

import (
	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/stretchr/testify/mock"
)

// MockBlockDevice implements littlefs.BlockDevice for testing across packages
type MockBlockDevice struct {
	mock.Mock
}

var _ littlefs.BlockDevice = (*MockBlockDevice)(nil)

func (m *MockBlockDevice) Read(block, off uint32, p []byte) error {
	args := m.Called(block, off, p)

	// Handle function return types so tests can fill p
	if fn, ok := args.Get(0).(func(uint32, uint32, []byte) error); ok {
		return fn(block, off, p)
	}
	return args.Error(0)
}

func (m *MockBlockDevice) Program(block, off uint32, p []byte) error {
	args := m.Called(block, off, p)
	return args.Error(0)
}

func (m *MockBlockDevice) Erase(block uint32) error {
	args := m.Called(block)
	return args.Error(0)
}

func (m *MockBlockDevice) Sync() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockBlockDevice) BlockSize() uint32 {
	args := m.Called()
	return args.Get(0).(uint32)
}

func (m *MockBlockDevice) BlockCount() uint32 {
	args := m.Called()
	return args.Get(0).(uint32)
}
