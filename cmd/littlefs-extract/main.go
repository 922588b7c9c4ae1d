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
	"github.com/google/uuid"

	_ "github.com/brettbedarf/littlefs-utils/engine/lfs1"
	_ "github.com/brettbedarf/littlefs-utils/engine/lfs2"
)

const name = "littlefs-extract"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := cli.New(name, "-i INPUT_FILE [-o OUTPUT_FILE] [-l LITTLEFS_VERSION] [-b BLOCK_SIZE] "+
		"[-r READ_SIZE] [-p PROG_SIZE] [-f FORMAT]", stderr)

	var (
		output string
		format string
	)
	cmd.Set.StringVar(&output, "output-file", "-", "archive to write, - for stdout")
	cmd.Set.StringVar(&output, "o", "-", "--output-file (shorthand)")
	cmd.Set.StringVar(&format, "format", "", "archive format: tar, tar.gz, tar.zst, tar.lz4 or tar.xz (default from output name)")
	cmd.Set.StringVar(&format, "f", "", "--format (shorthand)")
	if code, done := cmd.Parse(args, stdout); done {
		return code
	}

	cfg, override, err := cmd.Config()
	if err != nil {
		return cli.Fail(stderr, name, err)
	}
	if cmd.IsSet("format", "f") {
		cfg.ArchiveFormat = format
	} else if override.ArchiveFormat == nil && output != "-" {
		cfg.ArchiveFormat = string(archive.FormatForPath(output))
	}

	logger := util.GetLogger("main")

	version, err := cfg.LittlefsVersion()
	if err != nil {
		return cli.Fail(stderr, name, err)
	}
	af, err := archive.ParseFormat(cfg.ArchiveFormat)
	if err != nil {
		return cli.Fail(stderr, name, err)
	}

	var dev *blockdev.FileDevice
	if cfg.BlockCount != 0 {
		dev, err = blockdev.Open(cmd.Image, cfg.Geometry(), cli.DeviceOptions(cfg)...)
	} else {
		dev, err = blockdev.OpenImage(cmd.Image, cfg.BlockSize, false, cli.DeviceOptions(cfg)...)
	}
	if err != nil {
		return cli.Fail(stderr, name, err)
	}
	defer dev.Close()

	fsys, err := filesystem.MountVersion(version, dev, cfg.Tuning())
	if err != nil {
		return cli.Fail(stderr, name, err)
	}
	logger.Debug().Str("image", cmd.Image).Str("version", version.String()).Msg("Image mounted")

	runID := uuid.New()
	out, err := openOutput(output, runID, stdout)
	if err != nil {
		_ = fsys.Close()
		return cli.Fail(stderr, name, err)
	}

	stats, err := extract(fsys, out, af, pipeline.Options{Permissions: cfg.Permissions, RunID: runID})
	if err != nil {
		out.abort()
		return cli.Fail(stderr, name, err)
	}
	if err := out.commit(); err != nil {
		return cli.Fail(stderr, name, err)
	}

	logger.Info().
		Str("image", cmd.Image).
		Str("output", output).
		Str("format", string(af)).
		Int("files", stats.Files).
		Int64("bytes", stats.Bytes).
		Msg("Image extracted")
	return cli.ExitOK
}

// extract streams fsys into out. The archive is finalized before the image
// is unmounted, and both happen on every path.
func extract(fsys littlefs.Filesystem, out io.Writer, af archive.Format, opts pipeline.Options) (pipeline.Stats, error) {
	w, err := archive.NewWriter(out, af)
	if err != nil {
		return pipeline.Stats{}, errors.Join(err, fsys.Close())
	}
	stats, err := pipeline.Extract(fsys, w, opts)
	err = errors.Join(err, w.Close())
	return stats, errors.Join(err, fsys.Close())
}

// output is the archive sink. Named files are written to a temporary file
// next to the target and renamed into place on commit.
type output struct {
	io.Writer
	f      *os.File
	target string
}

func openOutput(path string, runID uuid.UUID, stdout io.Writer) (*output, error) {
	if path == "-" {
		return &output{Writer: stdout}, nil
	}
	tmp := fmt.Sprintf("%s.%s.tmp", path, runID)
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}
	return &output{Writer: f, f: f, target: path}, nil
}

func (o *output) commit() error {
	if o.f == nil {
		return nil
	}
	if err := o.f.Close(); err != nil {
		_ = os.Remove(o.f.Name())
		return fmt.Errorf("closing output: %w", err)
	}
	if err := os.Rename(o.f.Name(), o.target); err != nil {
		_ = os.Remove(o.f.Name())
		return fmt.Errorf("renaming output: %w", err)
	}
	return nil
}

func (o *output) abort() {
	if o.f == nil {
		return
	}
	_ = o.f.Close()
	_ = os.Remove(o.f.Name())
}
