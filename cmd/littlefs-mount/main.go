package main

import (
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/littlefs-utils/blockdev"
	"github.com/brettbedarf/littlefs-utils/filesystem"
	"github.com/brettbedarf/littlefs-utils/internal/cli"
	"github.com/brettbedarf/littlefs-utils/internal/util"
	"github.com/brettbedarf/littlefs-utils/server"

	_ "github.com/brettbedarf/littlefs-utils/engine/lfs1"
	_ "github.com/brettbedarf/littlefs-utils/engine/lfs2"
)

const name = "littlefs-mount"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := cli.New(name, "-i INPUT_FILE [-l LITTLEFS_VERSION] [-b BLOCK_SIZE] "+
		"[-r READ_SIZE] [-p PROG_SIZE] [-u] MOUNTPOINT", stderr)

	var umount, allowOther bool
	cmd.Set.BoolVar(&umount, "umount", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	cmd.Set.BoolVar(&umount, "u", false, "--umount (shorthand)")
	cmd.Set.BoolVar(&allowOther, "allow-other", false, "Let other users access the mount")
	if code, done := cmd.Parse(args, stdout); done {
		return code
	}

	mnt := cmd.Set.Arg(0)
	if mnt == "" {
		cmd.Set.Usage()
		return cli.ExitUsage
	}

	cfg, _, err := cmd.Config()
	if err != nil {
		return cli.Fail(stderr, name, err)
	}
	if cmd.IsSet("allow-other") {
		cfg.AllowOther = allowOther
	}
	logger := util.GetLogger("main")
	logger.Info().Str("image", cmd.Image).Str("mnt", mnt).Msg("littlefs mount initializing")

	version, err := cfg.LittlefsVersion()
	if err != nil {
		return cli.Fail(stderr, name, err)
	}

	dev, err := blockdev.OpenImage(cmd.Image, cfg.BlockSize, false, cli.DeviceOptions(cfg)...)
	if err != nil {
		return cli.Fail(stderr, name, err)
	}
	defer dev.Close()

	fsys, err := filesystem.MountVersion(version, dev, cfg.Tuning())
	if err != nil {
		return cli.Fail(stderr, name, err)
	}
	defer fsys.Close()

	if umount {
		// not mounted is fine
		exec.Command("fusermount", "-u", mnt).Run() // nolint:errcheck
	}

	lfs := server.New(fsys, cfg)
	if err := lfs.Serve(mnt); err != nil {
		return cli.Fail(stderr, name, err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(signalChan)

	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	unmounted := make(chan struct{})
	go func() {
		lfs.Wait()
		close(unmounted)
	}()

	select {
	case sig := <-signalChan:
		logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")
		if err := lfs.Unmount(); err != nil {
			logger.Error().Err(err).Msg("Failed to unmount filesystem")
			return cli.ExitError
		}
	case <-unmounted:
		logger.Info().Msg("Filesystem unmounted externally")
		lfs.CloseHandles()
	}
	logger.Info().Msg("Filesystem unmounted successfully")
	return cli.ExitOK
}
