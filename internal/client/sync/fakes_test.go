package sync

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	gosync "sync"
)

// fakeLocal is an in-memory LocalStore recording every mutating call.
type fakeLocalFile struct {
	data  []byte
	mtime int64
}

type fakeLocal struct {
	mu        gosync.Mutex
	files     map[string]*fakeLocalFile
	dirs      map[string]bool
	trash     map[string][]byte
	ops       []string
	failReads map[string]bool
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{
		files:     make(map[string]*fakeLocalFile),
		dirs:      make(map[string]bool),
		trash:     make(map[string][]byte),
		failReads: make(map[string]bool),
	}
}

func (f *fakeLocal) addFile(p string, data []byte, mtime int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = &fakeLocalFile{data: data, mtime: mtime}
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		f.dirs[dir] = true
	}
}

func (f *fakeLocal) addDir(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ; p != "." && p != "/"; p = path.Dir(p) {
		f.dirs[p] = true
	}
}

func (f *fakeLocal) record(op string) {
	f.ops = append(f.ops, op)
}

func (f *fakeLocal) ListAll() ([]*LocalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var entries []*LocalEntry
	for d := range f.dirs {
		entries = append(entries, &LocalEntry{Path: d, IsDir: true, Mtime: 1})
	}
	for p, file := range f.files {
		entries = append(entries, &LocalEntry{Path: p, Mtime: file.mtime, Size: int64(len(file.data))})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (f *fakeLocal) Stat(p string) (*LocalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirs[p] {
		return &LocalEntry{Path: p, IsDir: true, Mtime: 1}, nil
	}
	if file, ok := f.files[p]; ok {
		return &LocalEntry{Path: p, Mtime: file.mtime, Size: int64(len(file.data))}, nil
	}
	return nil, fmt.Errorf("stat %q: not found", p)
}

func (f *fakeLocal) ReadBytes(p string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads[p] {
		return nil, fmt.Errorf("read %q: injected failure", p)
	}
	file, ok := f.files[p]
	if !ok {
		return nil, fmt.Errorf("read %q: not found", p)
	}
	return file.data, nil
}

func (f *fakeLocal) WriteBytes(p string, data []byte, mtime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = &fakeLocalFile{data: data, mtime: mtime}
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		f.dirs[dir] = true
	}
	f.record("write:" + p)
	return nil
}

func (f *fakeLocal) EnsureDir(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for q := p; q != "." && q != "/"; q = path.Dir(q) {
		f.dirs[q] = true
	}
	f.record("mkdir:" + p)
	return nil
}

func (f *fakeLocal) Exists(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[p]
	return ok || f.dirs[p]
}

func (f *fakeLocal) RemoveEmptyDir(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for other := range f.files {
		if path.Dir(other) == p {
			return fmt.Errorf("rmdir %q: not empty", p)
		}
	}
	delete(f.dirs, p)
	f.record("rmdir:" + p)
	return nil
}

func (f *fakeLocal) MoveToTrash(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[p]
	if !ok {
		return fmt.Errorf("trash %q: not found", p)
	}
	f.trash[p] = file.data
	delete(f.files, p)
	f.record("trash:" + p)
	return nil
}

// fakeRemote is an in-memory RemoteStore with optional pagination and
// failure injection.
type fakeRemoteItem struct {
	id       string
	name     string
	parent   string
	isFolder bool
	mtime    int64
	data     []byte
	trashed  bool
}

type fakeRemote struct {
	mu            gosync.Mutex
	items         map[string]*fakeRemoteItem
	rootID        string
	nextID        int
	pageSize      int // >0 paginates ListChildren
	ops           []string
	failUploads   map[string]bool // by name
	failDownloads map[string]bool // by id
	authFail      bool
	listCalls     int
	gate          chan struct{} // when set, FindOrCreateFolder blocks until closed
	entered       chan struct{} // signalled once a call is inside the gate
}

func newFakeRemote() *fakeRemote {
	f := &fakeRemote{
		items:         make(map[string]*fakeRemoteItem),
		failUploads:   make(map[string]bool),
		failDownloads: make(map[string]bool),
	}
	f.rootID = f.newID()
	f.items[f.rootID] = &fakeRemoteItem{id: f.rootID, name: "root", isFolder: true}
	return f
}

func (f *fakeRemote) newID() string {
	f.nextID++
	return "id-" + strconv.Itoa(f.nextID)
}

// addFile creates a file (and its folder chain) under the fake root.
func (f *fakeRemote) addFile(relPath string, data []byte, mtime int64) *fakeRemoteItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent := f.rootID
	segs := splitPath(relPath)
	for _, seg := range segs[:len(segs)-1] {
		parent = f.childFolderLocked(seg, parent)
	}

	item := &fakeRemoteItem{
		id:     f.newID(),
		name:   segs[len(segs)-1],
		parent: parent,
		mtime:  mtime,
		data:   data,
	}
	f.items[item.id] = item
	return item
}

func (f *fakeRemote) addFolder(relPath string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent := f.rootID
	for _, seg := range splitPath(relPath) {
		parent = f.childFolderLocked(seg, parent)
	}
	return parent
}

func (f *fakeRemote) childFolderLocked(name, parent string) string {
	for _, item := range f.items {
		if item.isFolder && !item.trashed && item.name == name && item.parent == parent {
			return item.id
		}
	}
	folder := &fakeRemoteItem{id: f.newID(), name: name, parent: parent, isFolder: true, mtime: 1}
	f.items[folder.id] = folder
	return folder.id
}

// fileByPath walks the live (untrashed) tree.
func (f *fakeRemote) fileByPath(relPath string) *fakeRemoteItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent := f.rootID
	segs := splitPath(relPath)
	for i, seg := range segs {
		var found *fakeRemoteItem
		for _, item := range f.items {
			if !item.trashed && item.name == seg && item.parent == parent {
				found = item
				break
			}
		}
		if found == nil {
			return nil
		}
		if i == len(segs)-1 {
			return found
		}
		parent = found.id
	}
	return nil
}

func (f *fakeRemote) FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	if f.authFail {
		return "", ErrAuth
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if parentID == "" {
		parentID = f.rootID
	}
	f.ops = append(f.ops, "folder:"+name)
	return f.childFolderLocked(name, parentID), nil
}

func (f *fakeRemote) ListChildren(ctx context.Context, folderID, pageToken string) ([]*RemoteEntry, string, error) {
	if f.authFail {
		return nil, "", ErrAuth
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	var children []*fakeRemoteItem
	for _, item := range f.items {
		if !item.trashed && item.parent == folderID {
			children = append(children, item)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].name < children[j].name })

	start := 0
	if pageToken != "" {
		start, _ = strconv.Atoi(pageToken)
	}
	end := len(children)
	next := ""
	if f.pageSize > 0 && start+f.pageSize < len(children) {
		end = start + f.pageSize
		next = strconv.Itoa(end)
	} else if f.pageSize > 0 {
		end = len(children)
	}

	var entries []*RemoteEntry
	for _, item := range children[start:end] {
		entries = append(entries, &RemoteEntry{
			ID:         item.id,
			Name:       item.name,
			IsFolder:   item.isFolder,
			ModifiedAt: item.mtime,
			Size:       int64(len(item.data)),
		})
	}
	return entries, next, nil
}

func (f *fakeRemote) GetMetadata(ctx context.Context, id string) (*RemoteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("metadata %q: not found", id)
	}
	return &RemoteEntry{ID: item.id, Name: item.name, IsFolder: item.isFolder, ModifiedAt: item.mtime, Size: int64(len(item.data))}, nil
}

func (f *fakeRemote) Download(ctx context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDownloads[id] {
		return nil, fmt.Errorf("download %q: injected failure", id)
	}
	item, ok := f.items[id]
	if !ok || item.trashed {
		return nil, fmt.Errorf("download %q: not found", id)
	}
	f.ops = append(f.ops, "download:"+item.name)
	return item.data, nil
}

func (f *fakeRemote) Upload(ctx context.Context, up *UploadRequest) (*RemoteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUploads[up.Name] {
		return nil, fmt.Errorf("upload %q: injected failure", up.Name)
	}

	var item *fakeRemoteItem
	if up.ExistingID != "" {
		existing, ok := f.items[up.ExistingID]
		if !ok {
			return nil, fmt.Errorf("upload %q: unknown id %q", up.Name, up.ExistingID)
		}
		existing.data = up.Body
		existing.mtime = up.ModifiedAt
		item = existing
	} else {
		item = &fakeRemoteItem{
			id:     f.newID(),
			name:   up.Name,
			parent: up.ParentID,
			mtime:  up.ModifiedAt,
			data:   up.Body,
		}
		f.items[item.id] = item
	}

	f.ops = append(f.ops, "upload:"+up.Name)
	return &RemoteEntry{ID: item.id, Name: item.name, ModifiedAt: item.mtime, Size: int64(len(item.data))}, nil
}

func (f *fakeRemote) Trash(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return fmt.Errorf("trash %q: not found", id)
	}
	item.trashed = true
	f.ops = append(f.ops, "trash:"+item.name)
	return nil
}

func splitPath(p string) []string {
	var segs []string
	for _, seg := range splitOnSlash(p) {
		if seg != "" && seg != "." {
			segs = append(segs, seg)
		}
	}
	return segs
}

func splitOnSlash(p string) []string {
	var out []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[start:i])
			start = i + 1
		}
	}
	return append(out, p[start:])
}

// fakeState is an in-memory StateStore.
type fakeState struct {
	mu        gosync.Mutex
	watermark int64
	rootID    string
}

func (s *fakeState) Watermark() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark, nil
}

func (s *fakeState) SetWatermark(ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermark = ts
	return nil
}

func (s *fakeState) RemoteRootID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootID, nil
}

func (s *fakeState) SetRemoteRootID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rootID = id
	return nil
}

// recordingSink collects progress notifications.
type recordingSink struct {
	mu     gosync.Mutex
	events []Progress
}

func (r *recordingSink) OnProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func (r *recordingSink) executing() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Progress
	for _, p := range r.events {
		if p.Phase == PhaseExecuting && p.Path != "" {
			out = append(out, p)
		}
	}
	return out
}
