package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"video-share-service/internal/domain/entities"
	"video-share-service/internal/domain/repositories"
	"video-share-service/internal/encoder"
	"video-share-service/internal/messaging"
	"video-share-service/internal/organization"
	"video-share-service/internal/storage"
)

// memVideos is an in-memory VideoRepository.
type memVideos struct {
	mu     sync.Mutex
	videos map[uuid.UUID]entities.Video
	err    error
}

func newMemVideos() *memVideos {
	return &memVideos{videos: make(map[uuid.UUID]entities.Video)}
}

func (r *memVideos) Create(_ context.Context, v *entities.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.videos[v.ID]; ok {
		return repositories.ErrDuplicate
	}
	r.videos[v.ID] = *v
	return nil
}

func (r *memVideos) Upsert(_ context.Context, v *entities.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if old, ok := r.videos[v.ID]; ok {
		v.CreatedAt = old.CreatedAt
	}
	r.videos[v.ID] = *v
	return nil
}

func (r *memVideos) FindByID(_ context.Context, id uuid.UUID) (*entities.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &v, nil
}

func (r *memVideos) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.videos)
}

// memShares enforces the one-active-share-per-(video, username) index.
type memShares struct {
	mu     sync.Mutex
	shares []entities.Share
}

func (r *memShares) Create(_ context.Context, s *entities.Share) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.shares {
		if existing.Active && existing.VideoID == s.VideoID && existing.SharedWithUsername == s.SharedWithUsername {
			return repositories.ErrDuplicate
		}
	}
	r.shares = append(r.shares, *s)
	return nil
}

func (r *memShares) find(match func(entities.Share) bool) (*entities.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shares {
		if match(s) {
			out := s
			return &out, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memShares) FindByID(_ context.Context, id uuid.UUID) (*entities.Share, error) {
	return r.find(func(s entities.Share) bool { return s.ID == id })
}

func (r *memShares) FindActive(_ context.Context, videoID uuid.UUID, username string) (*entities.Share, error) {
	return r.find(func(s entities.Share) bool {
		return s.Active && s.VideoID == videoID && s.SharedWithUsername == username
	})
}

func (r *memShares) FindActiveFrom(_ context.Context, videoID uuid.UUID, username, org string) (*entities.Share, error) {
	return r.find(func(s entities.Share) bool {
		return s.Active && s.VideoID == videoID && s.SharedWithUsername == username && s.SharedWithOrganization == org
	})
}

func (r *memShares) ListByVideo(_ context.Context, videoID uuid.UUID) ([]entities.Share, error) {
	return r.filter(func(s entities.Share) bool { return s.VideoID == videoID }), nil
}

func (r *memShares) ListActiveByUsername(_ context.Context, username string) ([]entities.Share, error) {
	return r.filter(func(s entities.Share) bool { return s.Active && s.SharedWithUsername == username }), nil
}

func (r *memShares) filter(match func(entities.Share) bool) []entities.Share {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entities.Share{}
	for _, s := range r.shares {
		if match(s) {
			out = append(out, s)
		}
	}
	return out
}

func (r *memShares) Deactivate(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.shares {
		if r.shares[i].ID == id {
			was := r.shares[i].Active
			r.shares[i].Active = false
			return was, nil
		}
	}
	return false, nil
}

func (r *memShares) DeactivateFor(_ context.Context, videoID uuid.UUID, username string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.shares {
		s := &r.shares[i]
		if s.Active && s.VideoID == videoID && s.SharedWithUsername == username {
			s.Active = false
			n++
		}
	}
	return n, nil
}

func (r *memShares) all() []entities.Share {
	return r.filter(func(entities.Share) bool { return true })
}

func (r *memShares) activeCount() int {
	return len(r.filter(func(s entities.Share) bool { return s.Active }))
}

// memSyncs is an in-memory ShareSyncRepository.
type memSyncs struct {
	mu    sync.Mutex
	syncs map[uuid.UUID]*entities.ShareSync
}

func newMemSyncs() *memSyncs {
	return &memSyncs{syncs: make(map[uuid.UUID]*entities.ShareSync)}
}

func (r *memSyncs) Create(_ context.Context, s *entities.ShareSync) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.syncs[s.ID] = &cp
	return nil
}

func (r *memSyncs) list(match func(*entities.ShareSync) bool) []entities.ShareSync {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entities.ShareSync{}
	for _, s := range r.syncs {
		if match(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memSyncs) ListUnprocessed(_ context.Context, target string) ([]entities.ShareSync, error) {
	return r.list(func(s *entities.ShareSync) bool { return s.TargetOrganization == target && !s.IsProcessed }), nil
}

func (r *memSyncs) ListBySourceAndStatus(_ context.Context, source string, status entities.SyncStatus) ([]entities.ShareSync, error) {
	return r.list(func(s *entities.ShareSync) bool { return s.SourceOrganization == source && s.Status == status }), nil
}

func (r *memSyncs) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.syncs[id]; ok && !s.IsProcessed {
		s.IsProcessed = true
		s.Status = entities.SyncStatusProcessed
	}
	return nil
}

func (r *memSyncs) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.syncs[id]; ok && !s.IsProcessed {
		s.Status = entities.SyncStatusFailed
		s.ErrorMessage.String, s.ErrorMessage.Valid = message, true
	}
	return nil
}

func (r *memSyncs) CloseUnprocessed(_ context.Context, videoID uuid.UUID, username, message string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.syncs {
		if !s.IsProcessed && s.VideoID == videoID && s.SharedWithUsername == username {
			s.IsProcessed = true
			s.Status = entities.SyncStatusFailed
			s.ErrorMessage.String, s.ErrorMessage.Valid = message, true
			n++
		}
	}
	return n, nil
}

func (r *memSyncs) get(id uuid.UUID) entities.ShareSync {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.syncs[id]
}

// memStore is an in-memory ArtifactStore.
type memStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	putErr       func(key string) error
	getErr       error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte), contentTypes: make(map[string]string)}
}

func (s *memStore) contentType(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentTypes[key]
}

func (s *memStore) Bucket() string { return "videos" }

func (s *memStore) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	if s.putErr != nil {
		if err := s.putErr(key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.contentTypes[key] = contentType
	return nil
}

func (s *memStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Stat(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return 0, storage.ErrObjectNotFound
	}
	return int64(len(data)), nil
}

func (s *memStore) PresignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://store.local/videos/%s?expires=%d", key, int64(ttl.Seconds())), nil
}

func (s *memStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// fakeEncoder writes a small file per call. failures maps a height to the
// number of calls that fail before one succeeds.
type fakeEncoder struct {
	mu       sync.Mutex
	calls    []encoder.Params
	failures map[int]int
}

func (e *fakeEncoder) Run(_ context.Context, src, out string, p encoder.Params) error {
	e.mu.Lock()
	e.calls = append(e.calls, p)
	if e.failures[p.Height] > 0 {
		e.failures[p.Height]--
		e.mu.Unlock()
		return fmt.Errorf("ffmpeg exited with status 1 for %dp", p.Height)
	}
	e.mu.Unlock()
	return os.WriteFile(out, []byte(fmt.Sprintf("encoded %s at %dp", src, p.Height)), 0o644)
}

func (e *fakeEncoder) callCount(height int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c.Height == height {
			n++
		}
	}
	return n
}

type progressCall struct {
	status  entities.ProgressStatus
	percent int
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []progressCall
}

func (n *recordingNotifier) PushProgress(_, _ string, status entities.ProgressStatus, percent int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, progressCall{status: status, percent: percent})
}

func (n *recordingNotifier) snapshot() []progressCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]progressCall(nil), n.events...)
}

type publishedMessage struct {
	topic   string
	key     string
	msgType messaging.MessageType
	data    interface{}
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []publishedMessage
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, msgType messaging.MessageType, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, publishedMessage{topic: topic, key: key, msgType: msgType, data: data})
	return nil
}

// loopbackPeer delivers peer calls straight into another site's inbound
// service, keyed by endpoint.
type loopbackPeer struct {
	mu      sync.Mutex
	sites   map[string]*SyncInboundService
	calls   []string
	failOn  string
	blockOn string
	release chan struct{}
}

func newLoopbackPeer() *loopbackPeer {
	return &loopbackPeer{sites: make(map[string]*SyncInboundService), release: make(chan struct{})}
}

var errPeerDown = errors.New("peer unavailable")

func (p *loopbackPeer) enter(ctx context.Context, call, endpoint string) (*SyncInboundService, error) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	site := p.sites[endpoint]
	fail := p.failOn == call
	block := p.blockOn == call
	p.mu.Unlock()

	if block {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail || site == nil {
		return nil, errPeerDown
	}
	return site, nil
}

func (p *loopbackPeer) UploadFile(ctx context.Context, endpoint, objectName string, body io.Reader, contentType string) error {
	site, err := p.enter(ctx, "upload", endpoint)
	if err != nil {
		return err
	}
	return site.ReceiveFile(ctx, objectName, body, -1, contentType)
}

func (p *loopbackPeer) SyncVideo(ctx context.Context, endpoint string, payload entities.VideoSyncRequest) error {
	site, err := p.enter(ctx, "video", endpoint)
	if err != nil {
		return err
	}
	_, err = site.ReceiveVideoSync(ctx, payload)
	return err
}

func (p *loopbackPeer) SyncShare(ctx context.Context, endpoint string, payload entities.ShareSyncRequest) error {
	site, err := p.enter(ctx, "share", endpoint)
	if err != nil {
		return err
	}
	_, err = site.ReceiveShareSync(ctx, payload)
	return err
}

func (p *loopbackPeer) RevokeShare(ctx context.Context, endpoint string, payload entities.RevokeSyncRequest) error {
	site, err := p.enter(ctx, "revoke", endpoint)
	if err != nil {
		return err
	}
	return site.ReceiveRevoke(ctx, payload)
}

func (p *loopbackPeer) callLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func testRegistry(local string) *organization.Registry {
	r, err := organization.NewRegistry(local, []organization.Peer{
		{ID: "UNIT_1", IP: "192.168.205.108", Endpoint: "http://unit1/api/v1/sync"},
		{ID: "UNIT_2", IP: "192.168.205.104", Endpoint: "http://unit2/api/v1/sync"},
		{ID: "UNIT_3", IP: "192.168.205.110"},
	})
	if err != nil {
		panic(err)
	}
	return r
}

func bytesReader(s string) io.Reader {
	return bytes.NewReader([]byte(s))
}
