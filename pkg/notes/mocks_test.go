package notes_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/stratum/pkg/core"
)

// memLocal implements core.LocalStore in memory.
type memLocal struct {
	mu      sync.Mutex
	notes   []core.Note
	seen    map[string][]string
	failAll bool
}

func newMemLocal() *memLocal {
	return &memLocal{seen: make(map[string][]string)}
}

func (m *memLocal) Notes(ctx context.Context) ([]core.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errors.New("disk gone")
	}
	out := make([]core.Note, len(m.notes))
	copy(out, m.notes)
	return out, nil
}

func (m *memLocal) ReplaceNotes(ctx context.Context, notes []core.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("disk gone")
	}
	m.notes = make([]core.Note, len(notes))
	copy(m.notes, notes)
	return nil
}

func (m *memLocal) SeenNotes(ctx context.Context, identityID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen[identityID]...), nil
}

func (m *memLocal) MarkSeen(ctx context.Context, identityID, noteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.seen[identityID] {
		if id == noteID {
			return nil
		}
	}
	m.seen[identityID] = append(m.seen[identityID], noteID)
	return nil
}

func (m *memLocal) Close() error { return nil }

func (m *memLocal) stored() []core.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Note, len(m.notes))
	copy(out, m.notes)
	return out
}

// fakeRemote implements core.RemoteStore in memory with per-operation
// error injection (errs keyed by op name: "create", "update", ...).
type fakeRemote struct {
	mu         sync.Mutex
	notes      map[string]core.Note
	nextID     int
	errs       map[string]error
	calls      map[string]int
	comment    []core.Comment
	createErrs map[string]error // keyed by note URL; selective create failures
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		notes: make(map[string]core.Note),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeRemote) fail(op string, err error) {
	f.mu.Lock()
	f.errs[op] = err
	f.mu.Unlock()
}

// failCreateAt injects an error for creates of notes anchored at url,
// leaving creates of other notes untouched.
func (f *fakeRemote) failCreateAt(url string, err error) {
	f.mu.Lock()
	if f.createErrs == nil {
		f.createErrs = make(map[string]error)
	}
	f.createErrs[url] = err
	f.mu.Unlock()
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) check(op string) error {
	f.calls[op]++
	return f.errs[op]
}

func (f *fakeRemote) Create(ctx context.Context, n core.Note) (core.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("create"); err != nil {
		return core.Note{}, err
	}
	if err := f.createErrs[n.URL]; err != nil {
		return core.Note{}, err
	}
	f.nextID++
	n.ID = fmt.Sprintf("r-%d", f.nextID)
	f.notes[n.ID] = n
	return n, nil
}

func (f *fakeRemote) Get(ctx context.Context, id string) (core.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("get"); err != nil {
		return core.Note{}, err
	}
	n, ok := f.notes[id]
	if !ok {
		return core.Note{}, fmt.Errorf("%w: note %s", core.ErrNotFound, id)
	}
	return n, nil
}

func (f *fakeRemote) Update(ctx context.Context, n core.Note) (core.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("update"); err != nil {
		return core.Note{}, err
	}
	f.notes[n.ID] = n
	return n, nil
}

func (f *fakeRemote) Delete(ctx context.Context, id string, identity core.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("delete"); err != nil {
		return err
	}
	delete(f.notes, id)
	return nil
}

func (f *fakeRemote) QueryByURL(ctx context.Context, url string) ([]core.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("queryByUrl"); err != nil {
		return nil, err
	}
	var out []core.Note
	for _, n := range f.notes {
		if n.URL == url {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRemote) QueryOwned(ctx context.Context, ownerID string) ([]core.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("queryOwned"); err != nil {
		return nil, err
	}
	var out []core.Note
	for _, n := range f.notes {
		if n.OwnerID == ownerID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRemote) QuerySharedWith(ctx context.Context, email string) ([]core.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("querySharedWith"); err != nil {
		return nil, err
	}
	var out []core.Note
	for _, n := range f.notes {
		if n.SharedWithEmail(email) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRemote) Subscribe(ctx context.Context, q core.NoteQuery, onChange func([]core.Note), onError func(error)) (core.Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("subscribe"); err != nil {
		return nil, err
	}
	return func() {}, nil
}

func (f *fakeRemote) SubscribeComments(ctx context.Context, noteID string, onChange func([]core.Comment), onError func(error)) (core.Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("subscribeComments"); err != nil {
		return nil, err
	}
	return func() {}, nil
}

func (f *fakeRemote) CreateComment(ctx context.Context, c core.Comment) (core.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("createComment"); err != nil {
		return core.Comment{}, err
	}
	f.nextID++
	c.ID = fmt.Sprintf("c-%d", f.nextID)
	f.comment = append(f.comment, c)
	return c, nil
}

func (f *fakeRemote) UpdateComment(ctx context.Context, noteID, commentID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.check("updateComment")
}

func (f *fakeRemote) DeleteComment(ctx context.Context, noteID, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.check("deleteComment")
}

func (f *fakeRemote) QueryComments(ctx context.Context, noteID string) ([]core.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("queryComments"); err != nil {
		return nil, err
	}
	var out []core.Comment
	for _, c := range f.comment {
		if c.NoteID == noteID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRemote) seed(n core.Note) {
	f.mu.Lock()
	f.notes[n.ID] = n
	f.mu.Unlock()
}
