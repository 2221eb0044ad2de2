// Command sectorfs formats or mounts a sector-addressed block device file
// and drives an interactive shell over the filesystem facade.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dragonfs/sectorfs/internal/blockdev"
	"github.com/dragonfs/sectorfs/internal/config"
	"github.com/dragonfs/sectorfs/internal/directory"
	"github.com/dragonfs/sectorfs/internal/filesys"
	"github.com/dragonfs/sectorfs/internal/wd"
)

func main() {
	configPath := flag.String("config", "", "path to a sectorfs.toml config file")
	device := flag.String("device", "", "override the backing device file path")
	format := flag.Bool("format", false, "format the device fresh instead of mounting it")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *format {
		cfg.Format = true
	}

	var dev blockdev.Device
	if cfg.Format {
		dev, err = blockdev.NewFile(cfg.Device, cfg.Sectors)
	} else {
		dev, err = blockdev.OpenFile(cfg.Device, cfg.Sectors)
	}
	if err != nil {
		log.Fatalf("opening device %s: %v", cfg.Device, err)
	}

	var fs *filesys.FS
	if cfg.Format {
		fs, err = filesys.Format(dev, cfg.CacheSectors)
	} else {
		fs, err = filesys.Mount(dev, cfg.CacheSectors)
	}
	if err != nil {
		log.Fatalf("bringing up filesystem: %v", err)
	}

	wdctx := wd.New(fs.RootDir())
	defer wdctx.Close()

	fmt.Printf("sectorfs ready on %s (%d sectors, %d cache entries)\n", cfg.Device, cfg.Sectors, cfg.CacheSectors)
	runShell(fs, wdctx)

	if err := fs.Done(); err != nil {
		log.Printf("flushing filesystem: %v", err)
	}
	if err := dev.Close(); err != nil {
		log.Printf("closing device: %v", err)
	}
}

func runShell(fs *filesys.FS, wdctx *wd.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("sectorfs> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		switch cmd {
		case "exit", "quit":
			return
		case "ls":
			runLs(fs, wdctx, args)
		case "mkdir":
			runMkdir(fs, wdctx, args)
		case "create":
			runCreate(fs, wdctx, args)
		case "rm":
			runRemove(fs, wdctx, args)
		case "cd":
			runCd(fs, wdctx, args)
		case "import":
			runImport(fs, wdctx, args)
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}

func runLs(fs *filesys.FS, wdctx *wd.Context, args []string) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	dir, ok := fs.OpenDir(wdctx.Dir(), path)
	if !ok {
		fmt.Printf("ls: %s: not a directory\n", path)
		return
	}
	defer directory.Close(dir)
	for {
		name, ok := directory.ReadDir(dir)
		if !ok {
			return
		}
		if name == "." || name == ".." {
			continue
		}
		fmt.Println(name)
	}
}

func runMkdir(fs *filesys.FS, wdctx *wd.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: mkdir PATH")
		return
	}
	if !fs.Mkdir(wdctx.Dir(), args[0]) {
		fmt.Printf("mkdir: %s: failed\n", args[0])
	}
}

func runCreate(fs *filesys.FS, wdctx *wd.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("usage: create PATH SIZE")
		return
	}
	size, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Printf("create: bad size %q\n", args[1])
		return
	}
	if !fs.Create(wdctx.Dir(), args[0], size) {
		fmt.Printf("create: %s: failed\n", args[0])
	}
}

func runRemove(fs *filesys.FS, wdctx *wd.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: rm PATH")
		return
	}
	if !fs.Remove(wdctx.Dir(), args[0]) {
		fmt.Printf("rm: %s: failed\n", args[0])
	}
}

func runCd(fs *filesys.FS, wdctx *wd.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: cd PATH")
		return
	}
	dir, ok := fs.OpenDir(wdctx.Dir(), args[0])
	if !ok {
		fmt.Printf("cd: %s: not a directory\n", args[0])
		return
	}
	wdctx.Chdir(dir)
}

// runImport creates each of the named files concurrently via batchImport,
// demonstrating the facade's documented thread-safety under the same
// fan-out primitive (errgroup) the retrieval pack's FUSE frontends use for
// their own concurrency tests.
func runImport(fs *filesys.FS, wdctx *wd.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("usage: import PATH...")
		return
	}
	if err := batchImport(fs, wdctx.Dir(), args, 0); err != nil {
		fmt.Printf("import: %v\n", err)
	}
}

// batchImport creates every path in names, each sized bytes, concurrently.
// cwd anchors any relative names; every goroutine shares the single cwd
// handle read-only (Create only reads cwd to resolve the parent, never
// mutates it), matching the facade's thread-safety contract.
func batchImport(fs *filesys.FS, cwd *directory.Dir, names []string, size int64) error {
	var g errgroup.Group
	for _, name := range names {
		name := name
		g.Go(func() error {
			if !fs.Create(cwd, name, size) {
				return fmt.Errorf("create %s failed", name)
			}
			return nil
		})
	}
	return g.Wait()
}
