package kv

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/temoto/extremofile"
)

type storage interface {
	Read() ([]byte, error)
	io.Writer
}

// File is a Store persisted through an atomic file writer that keeps a
// backup copy. The whole document is rewritten on every change; the data
// set is a handful of short keys so that stays cheap.
type File struct {
	mu  sync.Mutex
	doc document
	st  storage
}

type document struct {
	Strings map[string]string `json:"strings"`
	Bools   map[string]bool   `json:"bools"`
}

// NewFile loads (or initializes) a store backed by files under dir. Only
// unusable storage is an error; missing or corrupt state starts fresh.
func NewFile(dir string) (*File, error) {
	st := storage(extremofile.New(extremofile.Config{
		Dir:      dir,
		DirPerm:  0755,
		FilePerm: 0644,
	}))
	f := &File{st: st}
	b, err := st.Read()
	if extremofile.IsCritical(err) {
		return nil, err
	}
	if b != nil {
		if err != nil {
			glog.Warningf("kv: ignoring non-critical read error: %v", err)
		}
		var d document
		if err := json.Unmarshal(b, &d); err != nil {
			glog.Warningf("kv: discarding unreadable state: %v", err)
		} else {
			f.doc = d
		}
	}
	if f.doc.Strings == nil {
		f.doc.Strings = make(map[string]string)
	}
	if f.doc.Bools == nil {
		f.doc.Bools = make(map[string]bool)
	}
	return f, nil
}

func (f *File) GetString(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.doc.Strings[key]
	return v, ok
}

func (f *File) SetString(key, value string) {
	f.mu.Lock()
	f.doc.Strings[key] = value
	f.flushLocked()
	f.mu.Unlock()
}

func (f *File) GetBool(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Bools[key]
}

func (f *File) SetBool(key string, value bool) {
	f.mu.Lock()
	f.doc.Bools[key] = value
	f.flushLocked()
	f.mu.Unlock()
}

func (f *File) Remove(key string) {
	f.mu.Lock()
	delete(f.doc.Strings, key)
	delete(f.doc.Bools, key)
	f.flushLocked()
	f.mu.Unlock()
}

func (f *File) flushLocked() {
	b, err := json.Marshal(f.doc)
	if err == nil {
		_, err = f.st.Write(b)
	}
	if err != nil {
		glog.Warningf("kv: write failed: %v", err)
	}
}
