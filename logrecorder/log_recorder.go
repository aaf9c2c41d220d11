// Package logrecorder 把标准 log 输出重定向到按日期分目录的日志文件。
package logrecorder

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Recorder 持有当前日志文件，可按固定周期轮换
type Recorder struct {
	Root   string // 日志根目录
	Name   string // 文件名前缀
	Stderr bool   // 同时输出到 stderr

	mu   sync.Mutex
	file *os.File
	stop chan struct{}
	done chan struct{}
}

// stamp 返回 "20060102_1504" 格式的时间戳
func stamp(t time.Time) string {
	return t.Format("20060102_1504")
}

// dayDir 返回以日期命名的目录（如：2025_04_25），不存在则创建
func dayDir(root string, t time.Time) (string, error) {
	dir := filepath.Join(root, fmt.Sprintf("%d_%02d_%02d", t.Year(), t.Month(), t.Day()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建日志目录失败: %w", err)
	}
	return dir, nil
}

// New 打开第一个日志文件并接管标准 log 输出
func New(root, name string, stderr bool) (*Recorder, error) {
	r := &Recorder{Root: root, Name: name, Stderr: stderr}
	if err := r.open(time.Now()); err != nil {
		return nil, err
	}
	return r, nil
}

// Path 返回当前日志文件路径
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return ""
	}
	return r.file.Name()
}

func (r *Recorder) open(now time.Time) error {
	dir, err := dayDir(r.Root, now)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, r.Name+stamp(now)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}

	log.SetPrefix("")
	log.SetFlags(log.Lmicroseconds)
	var w io.Writer = f
	if r.Stderr {
		w = io.MultiWriter(f, os.Stderr)
	}
	log.SetOutput(w)

	r.mu.Lock()
	old := r.file
	r.file = f
	r.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Rotate 每隔 every 换一个新文件，直到 Close
func (r *Recorder) Rotate(every time.Duration) {
	r.mu.Lock()
	if r.stop != nil || every <= 0 {
		r.mu.Unlock()
		return
	}
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	stop, done := r.stop, r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				if err := r.open(now); err != nil {
					// 轮换失败时继续写旧文件
					log.Printf("日志轮换失败: %v", err)
				}
			}
		}
	}()
}

// Close 停止轮换，恢复 stderr 输出并关闭文件
func (r *Recorder) Close() error {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}

	log.SetOutput(os.Stderr)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
