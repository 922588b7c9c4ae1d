package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/archive"
	"github.com/brettbedarf/littlefs-utils/blockdev"
	"github.com/brettbedarf/littlefs-utils/filesystem"
	"github.com/brettbedarf/littlefs-utils/internal/cli"
	"github.com/brettbedarf/littlefs-utils/internal/util"
	"github.com/brettbedarf/littlefs-utils/pipeline"

	_ "github.com/brettbedarf/littlefs-utils/engine/lfs1"
	_ "github.com/brettbedarf/littlefs-utils/engine/lfs2"
)

const name = "littlefs-format"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := cli.New(name, "-i INPUT_FILE [-l LITTLEFS_VERSION] [-b BLOCK_SIZE] "+
		"[-c BLOCK_COUNT] [-r READ_SIZE] [-p PROG_SIZE] [--from-archive ARCHIVE]", stderr)

	var (
		blockCount  uint
		fromArchive string
	)
	cmd.Set.UintVar(&blockCount, "block-count", 0, "filesystem block count (default derived from the image size)")
	cmd.Set.UintVar(&blockCount, "c", 0, "--block-count (shorthand)")
	cmd.Set.StringVar(&fromArchive, "from-archive", "", "tar archive whose files are copied into the new filesystem")
	if code, done := cmd.Parse(args, stdout); done {
		return code
	}

	cfg, _, err := cmd.Config()
	if err != nil {
		return cli.Fail(stderr, name, err)
	}
	if cmd.IsSet("block-count", "c") {
		if cfg.BlockCount, err = cli.Uint32("block-count", blockCount); err != nil {
			return cli.Fail(stderr, name, err)
		}
	}
	logger := util.GetLogger("main")

	version, err := cfg.LittlefsVersion()
	if err != nil {
		return cli.Fail(stderr, name, err)
	}

	// Without a block count the image must already exist at its final size.
	var dev *blockdev.FileDevice
	if cfg.BlockCount != 0 {
		dev, err = blockdev.Create(cmd.Image, cfg.Geometry(), cli.DeviceOptions(cfg)...)
	} else {
		dev, err = blockdev.OpenImage(cmd.Image, cfg.BlockSize, true, cli.DeviceOptions(cfg)...)
	}
	if err != nil {
		return cli.Fail(stderr, name, err)
	}
	defer dev.Close()

	if err := filesystem.FormatVersion(version, dev, cfg.Tuning()); err != nil {
		return cli.Fail(stderr, name, err)
	}
	logger.Info().
		Str("image", cmd.Image).
		Str("version", version.String()).
		Uint32("blockSize", dev.BlockSize()).
		Uint32("blockCount", dev.BlockCount()).
		Msg("Image formatted")

	if fromArchive != "" {
		stats, err := populate(dev, cfg.Tuning(), version, fromArchive)
		if err != nil {
			return cli.Fail(stderr, name, err)
		}
		logger.Info().
			Str("archive", fromArchive).
			Int("files", stats.Files).
			Int64("bytes", stats.Bytes).
			Msg("Image populated")
	}

	if err := dev.Sync(); err != nil {
		return cli.Fail(stderr, name, err)
	}
	return cli.ExitOK
}

// populate mounts the freshly formatted image and imports the archive at
// path into it.
func populate(dev *blockdev.FileDevice, tuning littlefs.Tuning, version littlefs.Version, path string) (pipeline.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.Stats{}, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	r, err := archive.NewReader(f, archive.FormatForPath(path))
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer r.Close()

	fsys, err := filesystem.MountVersion(version, dev, tuning)
	if err != nil {
		return pipeline.Stats{}, err
	}
	stats, err := pipeline.Import(fsys, r.Reader)
	return stats, errors.Join(err, fsys.Close())
}
