// Command imgfsctl is a small scripted CLI over an imgfs image: each
// invocation opens (or creates) an image file, mounts it, runs one command,
// and — for commands that mutate the image — writes the region back before
// exiting.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/go-imgfs/imgfs/backend"
	"github.com/go-imgfs/imgfs/backend/file"
	"github.com/go-imgfs/imgfs/imgfs"
	"github.com/go-imgfs/imgfs/util"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "imgfsctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: imgfsctl IMAGE COMMAND [args...] (commands: mkimage mkdir touch ls write cat rm rmdir mv stat statfs hexdump)")
	}
	imagePath, cmd, rest := args[0], args[1], args[2:]

	storage, mem, err := openImage(imagePath, cmd, rest)
	if err != nil {
		return err
	}
	defer storage.Close()

	h, err := imgfs.Mount(mem)
	if err != nil {
		return err
	}

	mutated, err := dispatch(h, cmd, rest)
	if err != nil {
		return err
	}
	if mutated {
		return writeBack(storage, mem)
	}
	return nil
}

// openImage creates a fresh, zeroed image file when cmd is "mkimage" (its
// one argument is the size in bytes), otherwise opens an existing one.
func openImage(imagePath, cmd string, rest []string) (backend.Storage, []byte, error) {
	if cmd == "mkimage" {
		if len(rest) < 1 {
			return nil, nil, fmt.Errorf("mkimage requires a size in bytes")
		}
		size, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid size %q: %w", rest[0], err)
		}
		storage, err := file.CreateFromPath(imagePath, size)
		if err != nil {
			return nil, nil, err
		}
		return storage, make([]byte, size), nil
	}

	storage, err := file.OpenFromPath(imagePath, false)
	if err != nil {
		return nil, nil, err
	}
	mem, err := readAll(storage)
	if err != nil {
		storage.Close()
		return nil, nil, err
	}
	return storage, mem, nil
}

func readAll(storage backend.Storage) ([]byte, error) {
	info, err := storage.Stat()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, info.Size())
	if _, err := storage.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func writeBack(storage backend.Storage, mem []byte) error {
	w, err := storage.Writable()
	if err != nil {
		return err
	}
	_, err = w.WriteAt(mem, 0)
	return err
}

func dispatch(h *imgfs.Handle, cmd string, args []string) (mutated bool, err error) {
	switch cmd {
	case "mkimage":
		return true, nil // Mount already formatted it.
	case "mkdir":
		return true, requireArgs(args, 1, func() error { return h.Mkdir(args[0]) })
	case "touch":
		return true, requireArgs(args, 1, func() error { return h.Mknod(args[0]) })
	case "rm":
		return true, requireArgs(args, 1, func() error { return h.Unlink(args[0]) })
	case "rmdir":
		return true, requireArgs(args, 1, func() error { return h.Rmdir(args[0]) })
	case "mv":
		return true, requireArgs(args, 2, func() error { return h.Rename(args[0], args[1]) })
	case "write":
		return true, requireArgs(args, 2, func() error {
			_, err := h.Write(args[0], []byte(strings.Join(args[1:], " ")), 0)
			return err
		})
	case "ls":
		return false, requireArgs(args, 1, func() error { return printReaddir(h, args[0]) })
	case "cat":
		return false, requireArgs(args, 1, func() error { return printCat(h, args[0]) })
	case "stat":
		return false, requireArgs(args, 1, func() error { return printStat(h, args[0]) })
	case "hexdump":
		return false, requireArgs(args, 1, func() error { return printHexdump(h, args[0]) })
	case "statfs":
		printStatfs(h)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
}

func requireArgs(args []string, n int, f func() error) error {
	if len(args) < n {
		return fmt.Errorf("command requires %d argument(s)", n)
	}
	return f()
}

func printReaddir(h *imgfs.Handle, path string) error {
	entries, err := h.Readdir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		kind := "f"
		if e.IsDir {
			kind = "d"
		}
		fmt.Printf("%s %s\n", kind, e.Name)
	}
	return nil
}

func printCat(h *imgfs.Handle, path string) error {
	attr, err := h.Getattr(path)
	if err != nil {
		return err
	}
	buf := make([]byte, attr.Size)
	if _, err := h.Read(path, buf, 0); err != nil {
		return err
	}
	_, err = os.Stdout.Write(buf)
	return err
}

func printStat(h *imgfs.Handle, path string) error {
	attr, err := h.Getattr(path)
	if err != nil {
		return err
	}
	fmt.Printf("name:  %s\n", attr.Name)
	fmt.Printf("type:  %s\n", map[bool]string{true: "directory", false: "file"}[attr.IsDir])
	if !attr.IsDir {
		fmt.Printf("size:  %d\n", attr.Size)
	}
	fmt.Printf("atime: %s\n", attr.Atime)
	fmt.Printf("mtime: %s\n", attr.Mtime)
	return nil
}

func printStatfs(h *imgfs.Handle) {
	s := h.Statfs()
	fmt.Printf("volume:       %s\n", s.VolumeID)
	fmt.Printf("label:        %s\n", s.Label)
	fmt.Printf("block size:   %d\n", s.BlockSize)
	fmt.Printf("total blocks: %d\n", s.TotalBlocks)
	fmt.Printf("free blocks:  %d\n", s.FreeBlocks)
	fmt.Printf("name max:     %d\n", s.NameMax)
}

func printHexdump(h *imgfs.Handle, path string) error {
	attr, err := h.Getattr(path)
	if err != nil {
		return err
	}
	buf := make([]byte, attr.Size)
	if _, err := h.Read(path, buf, 0); err != nil {
		return err
	}
	fmt.Print(util.DumpByteSlice(buf, 16, true, true, false, nil))
	return nil
}

func init() {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	imgfs.SetLogger(l)
}
