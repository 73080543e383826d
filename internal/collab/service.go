package collab

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/collabkit/server/internal/storage"
	"go.uber.org/zap"
)

// ErrNotJoined is returned when a connection addresses a workspace it never
// joined.
var ErrNotJoined = errors.New("connection not joined to workspace")

// Sender delivers one event to one connection. The websocket hub implements
// it; tests substitute a recorder.
type Sender interface {
	Send(connectionID, event string, payload map[string]interface{})
}

// Options tune the collaboration service. Zero values fall back to
// production defaults.
type Options struct {
	HistorySize     int
	IdleThreshold   time.Duration
	AwayThreshold   time.Duration
	SweepInterval   time.Duration
	PersistQueueLen int
}

func (o Options) withDefaults() Options {
	if o.HistorySize <= 0 {
		o.HistorySize = 100
	}
	if o.IdleThreshold <= 0 {
		o.IdleThreshold = 5 * time.Minute
	}
	if o.AwayThreshold <= 0 {
		o.AwayThreshold = 15 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 30 * time.Second
	}
	if o.PersistQueueLen <= 0 {
		o.PersistQueueLen = 1024
	}
	return o
}

// workspace groups the collaborators currently co-editing one document.
type workspace struct {
	mu            sync.RWMutex
	id            string
	collaborators map[string]*Collaborator
}

// connState tracks which workspaces a connection joined and the document it
// entered each one for, so leave tears down exactly the room it joined.
type connState struct {
	userID     string
	workspaces map[string]string
}

// Service is the session gateway. It is the sole owner of workspace and
// document room membership: connection events are dispatched to the presence
// store, lock table and operation processor, and the resulting deltas fan
// back out to every subscribed connection. An optional Redis bridge relays
// events to other server instances.
type Service struct {
	logger *zap.Logger
	sender Sender
	store  storage.Gateway
	bridge *storage.RedisBridge
	opts   Options
	clock  func() time.Time

	mu          sync.RWMutex
	workspaces  map[string]*workspace
	documents   map[string]*document
	docRooms    map[string]map[string]struct{}
	connections map[string]*connState

	persistMu sync.Mutex
	persist   chan persistJob
	closed    bool
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a collaboration service and starts its persistence worker.
// store and bridge may be nil for single-node, memory-only operation.
func New(logger *zap.Logger, sender Sender, store storage.Gateway, bridge *storage.RedisBridge, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		logger:      logger,
		sender:      sender,
		store:       store,
		bridge:      bridge,
		opts:        opts.withDefaults(),
		clock:       time.Now,
		workspaces:  make(map[string]*workspace),
		documents:   make(map[string]*document),
		docRooms:    make(map[string]map[string]struct{}),
		connections: make(map[string]*connState),
		done:        make(chan struct{}),
	}
	s.persist = make(chan persistJob, s.opts.PersistQueueLen)

	s.wg.Add(1)
	go s.runPersister()

	return s
}

// Run drives the liveness sweep until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepLiveness(ctx)
		}
	}
}

// Close stops the persistence worker after draining queued writes. The queue
// is closed under persistMu so an in-flight enqueue can never race it.
func (s *Service) Close() {
	s.persistMu.Lock()
	if s.closed {
		s.persistMu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	close(s.persist)
	s.persistMu.Unlock()

	s.wg.Wait()
}

// Join registers a collaborator in a workspace, lazily loading the document
// it edits. The joining connection receives the full workspace snapshot and
// everyone else learns about the new member.
func (s *Service) Join(ctx context.Context, connID, userID, workspaceID, documentID string, info UserInfo) error {
	s.mu.Lock()
	ws, ok := s.workspaces[workspaceID]
	wsCreated := !ok
	if wsCreated {
		ws = &workspace{
			id:            workspaceID,
			collaborators: make(map[string]*Collaborator),
		}
		s.workspaces[workspaceID] = ws
	}
	doc, ok := s.documents[documentID]
	if !ok {
		doc = newDocument(documentID)
		s.documents[documentID] = doc
	}
	room, ok := s.docRooms[documentID]
	roomCreated := !ok
	if roomCreated {
		room = make(map[string]struct{})
		s.docRooms[documentID] = room
	}
	room[connID] = struct{}{}
	conn, ok := s.connections[connID]
	if !ok {
		conn = &connState{userID: userID, workspaces: make(map[string]string)}
		s.connections[connID] = conn
	}
	conn.workspaces[workspaceID] = documentID
	s.mu.Unlock()

	doc.mu.Lock()
	if err := doc.ensureLoaded(ctx, s.store); err != nil {
		doc.mu.Unlock()
		return err
	}
	docContent := doc.content.Interface()
	docVersion := doc.version
	doc.mu.Unlock()

	now := s.clock()
	member := &Collaborator{
		UserID:       userID,
		ConnectionID: connID,
		DisplayName:  info.Name,
		Avatar:       info.Avatar,
		Color:        ColorForUser(userID),
		Status:       StatusActive,
		LastActivity: now,
	}

	ws.mu.Lock()
	ws.collaborators[userID] = member
	roster := make([]*Collaborator, 0, len(ws.collaborators))
	for _, c := range ws.collaborators {
		roster = append(roster, c)
	}
	ws.mu.Unlock()

	if wsCreated {
		s.subscribeWorkspace(ctx, workspaceID)
	}
	if roomCreated {
		s.subscribeDocument(ctx, documentID)
	}

	s.sender.Send(connID, EventWorkspaceState, map[string]interface{}{
		"workspaceId":   workspaceID,
		"collaborators": roster,
		"document": map[string]interface{}{
			"id":      documentID,
			"content": docContent,
			"version": docVersion,
		},
	})

	s.broadcastWorkspace(ctx, ws, connID, EventUserJoined, map[string]interface{}{
		"workspaceId": workspaceID,
		"user":        member,
	}, true)

	s.logger.Info("collaborator joined workspace",
		zap.String("workspaceId", workspaceID),
		zap.String("documentId", documentID),
		zap.String("userId", userID))

	return nil
}

// Leave removes the connection's collaborator from a workspace, releases
// every lock that user holds across all resident documents, and evicts the
// workspace once its last member is gone.
func (s *Service) Leave(ctx context.Context, connID, workspaceID string) error {
	s.mu.Lock()
	conn := s.connections[connID]
	ws := s.workspaces[workspaceID]
	if conn == nil || ws == nil {
		s.mu.Unlock()
		return ErrNotJoined
	}
	documentID, joined := conn.workspaces[workspaceID]
	if !joined {
		s.mu.Unlock()
		return ErrNotJoined
	}
	delete(conn.workspaces, workspaceID)
	userID := conn.userID

	roomEmptied := false
	if room := s.docRooms[documentID]; room != nil {
		delete(room, connID)
		if len(room) == 0 {
			delete(s.docRooms, documentID)
			roomEmptied = true
		}
	}

	docs := make([]*document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	s.mu.Unlock()

	for _, d := range docs {
		d.mu.Lock()
		freed := d.releaseUserLocks(userID)
		d.mu.Unlock()
		for _, path := range freed {
			s.broadcastDocument(ctx, d.id, "", EventElementUnlocked, map[string]interface{}{
				"documentId":  d.id,
				"elementPath": path,
				"userId":      userID,
			}, true)
		}
	}

	ws.mu.Lock()
	delete(ws.collaborators, userID)
	empty := len(ws.collaborators) == 0
	ws.mu.Unlock()

	s.broadcastWorkspace(ctx, ws, connID, EventUserLeft, map[string]interface{}{
		"workspaceId": workspaceID,
		"userId":      userID,
	}, true)

	if empty {
		s.mu.Lock()
		if s.workspaces[workspaceID] == ws {
			delete(s.workspaces, workspaceID)
		}
		s.mu.Unlock()
		s.unsubscribeWorkspace(ctx, workspaceID)
	}
	if roomEmptied {
		s.unsubscribeDocument(ctx, documentID)
	}

	s.logger.Info("collaborator left workspace",
		zap.String("workspaceId", workspaceID),
		zap.String("userId", userID))

	return nil
}

// Disconnect tears down every workspace membership the connection holds.
// Called by the transport when the socket closes.
func (s *Service) Disconnect(ctx context.Context, connID string) {
	s.mu.RLock()
	conn := s.connections[connID]
	var wsIDs []string
	if conn != nil {
		for id := range conn.workspaces {
			wsIDs = append(wsIDs, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range wsIDs {
		if err := s.Leave(ctx, connID, id); err != nil && !errors.Is(err, ErrNotJoined) {
			s.logger.Warn("failed to leave workspace on disconnect",
				zap.String("workspaceId", id), zap.Error(err))
		}
	}

	s.mu.Lock()
	delete(s.connections, connID)
	s.mu.Unlock()
}

// memberFor resolves the collaborator a connection controls in a workspace.
func (s *Service) memberFor(connID, workspaceID string) (*workspace, string, error) {
	s.mu.RLock()
	conn := s.connections[connID]
	ws := s.workspaces[workspaceID]
	s.mu.RUnlock()

	if conn == nil || ws == nil {
		return nil, "", ErrNotJoined
	}
	return ws, conn.userID, nil
}

func (s *Service) userFor(connID string) (string, error) {
	s.mu.RLock()
	conn := s.connections[connID]
	s.mu.RUnlock()

	if conn == nil {
		return "", ErrNotJoined
	}
	return conn.userID, nil
}

// broadcastWorkspace sends an event to every workspace member except the
// excluded connection, then optionally relays it to other server instances.
func (s *Service) broadcastWorkspace(ctx context.Context, ws *workspace, exclude, event string, payload map[string]interface{}, relay bool) {
	ws.mu.RLock()
	conns := make([]string, 0, len(ws.collaborators))
	for _, c := range ws.collaborators {
		if c.ConnectionID != exclude {
			conns = append(conns, c.ConnectionID)
		}
	}
	ws.mu.RUnlock()

	for _, id := range conns {
		s.sender.Send(id, event, payload)
	}

	if relay && s.bridge != nil && s.bridge.IsConnected() {
		if err := s.bridge.PublishToWorkspace(ctx, ws.id, event, payload); err != nil {
			s.logger.Warn("failed to relay workspace event",
				zap.String("event", event), zap.Error(err))
		}
	}
}

// broadcastDocument sends an event to every connection in a document room.
func (s *Service) broadcastDocument(ctx context.Context, documentID, exclude, event string, payload map[string]interface{}, relay bool) {
	s.mu.RLock()
	room := s.docRooms[documentID]
	conns := make([]string, 0, len(room))
	for id := range room {
		if id != exclude {
			conns = append(conns, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range conns {
		s.sender.Send(id, event, payload)
	}

	if relay && s.bridge != nil && s.bridge.IsConnected() {
		if err := s.bridge.PublishToDocument(ctx, documentID, event, payload); err != nil {
			s.logger.Warn("failed to relay document event",
				zap.String("event", event), zap.Error(err))
		}
	}
}

func (s *Service) subscribeWorkspace(ctx context.Context, workspaceID string) {
	if s.bridge == nil || !s.bridge.IsConnected() {
		return
	}
	err := s.bridge.SubscribeWorkspace(ctx, workspaceID, func(evt *storage.RemoteEvent) {
		s.mu.RLock()
		ws := s.workspaces[workspaceID]
		s.mu.RUnlock()
		if ws != nil {
			s.broadcastWorkspace(context.Background(), ws, "", evt.Event, evt.Payload, false)
		}
	})
	if err != nil {
		s.logger.Warn("failed to subscribe workspace channel",
			zap.String("workspaceId", workspaceID), zap.Error(err))
	}
}

func (s *Service) subscribeDocument(ctx context.Context, documentID string) {
	if s.bridge == nil || !s.bridge.IsConnected() {
		return
	}
	err := s.bridge.SubscribeDocument(ctx, documentID, func(evt *storage.RemoteEvent) {
		s.broadcastDocument(context.Background(), documentID, "", evt.Event, evt.Payload, false)
	})
	if err != nil {
		s.logger.Warn("failed to subscribe document channel",
			zap.String("documentId", documentID), zap.Error(err))
	}
}

func (s *Service) unsubscribeWorkspace(ctx context.Context, workspaceID string) {
	if s.bridge == nil || !s.bridge.IsConnected() {
		return
	}
	if err := s.bridge.UnsubscribeWorkspace(ctx, workspaceID); err != nil {
		s.logger.Warn("failed to unsubscribe workspace channel",
			zap.String("workspaceId", workspaceID), zap.Error(err))
	}
}

func (s *Service) unsubscribeDocument(ctx context.Context, documentID string) {
	if s.bridge == nil || !s.bridge.IsConnected() {
		return
	}
	if err := s.bridge.UnsubscribeDocument(ctx, documentID); err != nil {
		s.logger.Warn("failed to unsubscribe document channel",
			zap.String("documentId", documentID), zap.Error(err))
	}
}
