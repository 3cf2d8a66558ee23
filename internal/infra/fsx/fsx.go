package fsx

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV / rename 失败。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// 临时文件总是与目标同目录创建，出现 EXDEV 说明目录本身是挂载点拼接，直接失败。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// StatFile 返回普通文件的大小；不存在时 ok=false。目标是目录时返回 PathTypeConflictError。
func StatFile(path string) (size int64, ok bool, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if fi.IsDir() {
		return 0, false, &PathTypeConflictError{Path: path, Want: "file", Got: "dir"}
	}
	return fi.Size(), true, nil
}

// WriteFileAtomic 在 dir 下原子写入 name（临时文件 + rename），目标已存在则覆盖。
func WriteFileAtomic(dir, name string, data []byte) error {
	_, err := WriteStreamAtomic(dir, name, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	})
	return err
}

// WriteStreamAtomic 把 fill 写出的字节原子落盘到 dir/name。
//
// - 临时文件与目标同目录（".<name>.part-*"），保证 rename 的原子性
// - fill 返回错误时删除临时文件，目标文件保持原样
// - 成功后目录 fsync 为 best-effort
func WriteStreamAtomic(dir, name string, fill func(w io.Writer) (int64, error)) (int64, error) {
	if err := EnsureDir(dir); err != nil {
		return 0, err
	}
	dst := filepath.Join(dir, name)
	if fi, err := os.Lstat(dst); err == nil && fi.IsDir() {
		return 0, &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}

	tmp, err := os.CreateTemp(dir, "."+name+".part-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	bw := bufio.NewWriterSize(tmp, 1<<20)
	n, err := fill(bw)
	if err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}

	if err := Rename(tmpName, dst); err != nil {
		return n, err
	}
	_ = syncDirBestEffort(dir)
	return n, nil
}

// EnsureDir 幂等地创建目录；路径被普通文件占用时返回 PathTypeConflictError。
func EnsureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// RemoveBestEffort 删除文件；不存在视为成功。
// Windows 上文件可能仍被打开的句柄占用，删除失败时静默忽略。
func RemoveBestEffort(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	if runtime.GOOS == "windows" {
		return nil
	}
	return err
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
