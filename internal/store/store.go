// Package store persists insight records durably. Each insight is one
// human-readable YAML file under insights/, plus a browsable markdown index
// that can always be rebuilt from the records alone.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ryan258/insight-capsule/internal/domain"
)

const (
	insightsDirName = "insights"
	logDirName      = "log"
	indexFileName   = "index.md"
	indexHeader     = "# Capsule Log Index\n\n"
)

// Store is the durable insight store rooted at a data directory.
type Store struct {
	dir string

	mu    sync.Mutex // guards index writes and the lock map
	locks map[string]*sync.Mutex
}

// New opens (creating if needed) a store rooted at dir.
func New(dir string) (*Store, error) {
	for _, sub := range []string{insightsDirName, logDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, &domain.StorageError{Path: dir, Err: err}
		}
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Save writes the insight durably and updates the index. A missing ID or
// CreatedAt is assigned here; the returned id is stable from then on.
func (s *Store) Save(ins *domain.Insight) (string, error) {
	if ins.CreatedAt.IsZero() {
		ins.CreatedAt = time.Now()
	}
	if ins.ID == "" {
		ins.ID = NewID(ins.CreatedAt)
	}
	if err := s.writeRecord(ins); err != nil {
		return "", err
	}
	if err := s.addIndexEntry(ins); err != nil {
		return "", err
	}
	return ins.ID, nil
}

// Load reads one insight by id. Returns domain.ErrNotFound for unknown ids.
func (s *Store) Load(id string) (*domain.Insight, error) {
	path := s.recordPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", id, domain.ErrNotFound)
		}
		return nil, &domain.StorageError{Path: path, Err: err}
	}
	var ins domain.Insight
	if err := yaml.Unmarshal(data, &ins); err != nil {
		return nil, &domain.StorageError{Path: path, Err: err}
	}
	return &ins, nil
}

// AppendDraft appends one draft to an insight. Appends to the same insight
// are serialized; different insights never contend.
func (s *Store) AppendDraft(id string, draft domain.Draft) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	ins, err := s.Load(id)
	if err != nil {
		return err
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now()
	}
	ins.Drafts = append(ins.Drafts, draft)
	return s.writeRecord(ins)
}

// List returns every stored insight, newest first.
func (s *Store) List() ([]domain.Insight, error) {
	dir := filepath.Join(s.dir, insightsDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.StorageError{Path: dir, Err: err}
	}
	var out []domain.Insight
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		ins, err := s.Load(strings.TrimSuffix(e.Name(), ".yaml"))
		if err != nil {
			return nil, err
		}
		out = append(out, *ins)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ListRecent returns at most n insights, newest first.
func (s *Store) ListRecent(n int) ([]domain.Insight, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all, nil
}

// RebuildIndex regenerates the index and the markdown views purely from the
// stored records. The result is identical to what incremental maintenance
// would have produced, so a crash between writing a record and updating the
// index is repaired by calling this.
func (s *Store) RebuildIndex() error {
	all, err := s.List()
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString(indexHeader)
	for i := range all {
		sb.WriteString(indexEntry(&all[i]))
		if err := s.writeFileAtomic(s.logPath(all[i].ID), []byte(renderMarkdown(&all[i]))); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFileAtomic(filepath.Join(s.dir, indexFileName), []byte(sb.String()))
}

// NewID derives a stable insight id from its creation time.
func NewID(at time.Time) string {
	return at.Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

func (s *Store) writeRecord(ins *domain.Insight) error {
	data, err := yaml.Marshal(ins)
	if err != nil {
		return &domain.StorageError{Path: s.recordPath(ins.ID), Err: err}
	}
	if err := s.writeFileAtomic(s.recordPath(ins.ID), data); err != nil {
		return err
	}
	// The markdown view is derived from the record; it is regenerated on every
	// write and is never read back.
	return s.writeFileAtomic(s.logPath(ins.ID), []byte(renderMarkdown(ins)))
}

// renderMarkdown produces the human-browsable view of one insight.
func renderMarkdown(ins *domain.Insight) string {
	var sb strings.Builder
	title := strings.TrimSpace(ins.Title)
	if title == "" {
		title = "Untitled Entry"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "- Captured: %s\n", ins.CreatedAt.Format("2006-01-02 15:04:05"))
	if len(ins.Tags) > 0 {
		parts := make([]string, len(ins.Tags))
		for i, t := range ins.Tags {
			parts[i] = "#" + t
		}
		fmt.Fprintf(&sb, "- Tags: %s\n", strings.Join(parts, " "))
	}
	if ins.Capsule != "" {
		fmt.Fprintf(&sb, "\n## Capsule\n\n%s\n", ins.Capsule)
	}
	fmt.Fprintf(&sb, "\n## Transcript\n\n%s\n", ins.Transcript)
	for _, d := range ins.Drafts {
		fmt.Fprintf(&sb, "\n## %s (%s)\n\n%s\n", capitalize(d.Kind), d.CreatedAt.Format("2006-01-02 15:04"), d.Text)
	}
	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// addIndexEntry prepends the entry below the header, newest first.
func (s *Store) addIndexEntry(ins *domain.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.dir, indexFileName)
	entry := indexEntry(ins)
	current, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.StorageError{Path: path, Err: err}
	}
	body := strings.TrimPrefix(string(current), indexHeader)
	// Replace an existing line for this id rather than duplicating it.
	marker := "(" + logDirName + "/" + ins.ID + ".md)"
	if strings.Contains(body, marker) {
		lines := strings.SplitAfter(body, "\n")
		var kept []string
		for _, l := range lines {
			if !strings.Contains(l, marker) {
				kept = append(kept, l)
			}
		}
		body = strings.Join(kept, "")
	}
	return s.writeFileAtomic(path, []byte(indexHeader+entry+body))
}

// writeFileAtomic writes via a temp file in the same directory and renames,
// so a partial file is never visible under the final name.
func (s *Store) writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return &domain.StorageError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.StorageError{Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.StorageError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &domain.StorageError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &domain.StorageError{Path: path, Err: err}
	}
	return nil
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, insightsDirName, id+".yaml")
}

func (s *Store) logPath(id string) string {
	return filepath.Join(s.dir, logDirName, id+".md")
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func indexEntry(ins *domain.Insight) string {
	title := strings.TrimSpace(ins.Title)
	if title == "" {
		title = "Untitled Entry"
	}
	tags := ""
	if len(ins.Tags) > 0 {
		parts := make([]string, len(ins.Tags))
		for i, t := range ins.Tags {
			parts[i] = "#" + t
		}
		tags = " " + strings.Join(parts, " ")
	}
	return fmt.Sprintf("- [%s](%s/%s.md) — %s%s\n",
		title, logDirName, ins.ID, ins.CreatedAt.Format("2006-01-02 15:04:05"), tags)
}
