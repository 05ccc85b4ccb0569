// Package gateway is the persistence layer: the local database is the
// source of truth for availability, the remote tier is best effort.
// Every save writes locally first and mirrors to the remote in the
// background so a dead network never blocks the user.
package gateway

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"eltimer/internal/core"
	"eltimer/internal/log"
	"eltimer/internal/metrics"
)

// LocalBlob is the local state store, keyed by scope.
type LocalBlob interface {
	Get(ctx context.Context, scope string) (string, bool, error)
	Put(ctx context.Context, scope, data string) error
}

// RemoteBlob is the shared state store, keyed by company id.
type RemoteBlob interface {
	Get(ctx context.Context, companyID string) (string, bool, error)
	Upsert(ctx context.Context, companyID, data string) error
	Insert(ctx context.Context, companyID, data string) error
}

// Notifier announces completed saves to interested consumers.
type Notifier interface {
	StateSaved(ctx context.Context, companyID string, revision int64) error
}

// Gateway mediates between the in-memory state and the two storage
// tiers.
type Gateway struct {
	local    LocalBlob
	remote   RemoteBlob // nil when running offline
	notifier Notifier   // nil when messaging is not configured
	scope    string
	logger   *log.Logger
	metrics  *metrics.Metrics

	mirror chan string
	done   chan struct{}
}

// New creates a gateway for one scope. remote and notifier may be nil.
// queueSize bounds the pending remote mirror writes; when full the
// oldest pending snapshot is discarded since only the newest matters.
func New(local LocalBlob, remote RemoteBlob, notifier Notifier, scope string, queueSize int, logger *log.Logger, m *metrics.Metrics) *Gateway {
	if queueSize < 1 {
		queueSize = 1
	}
	g := &Gateway{
		local:    local,
		remote:   remote,
		notifier: notifier,
		scope:    scope,
		logger:   logger.WithComponent(log.ComponentGateway),
		metrics:  m,
		mirror:   make(chan string, queueSize),
		done:     make(chan struct{}),
	}
	go g.mirrorLoop()
	return g
}

// Load reads both tiers concurrently and reconciles them. The remote
// copy wins when it exists; it is then written back to the local store
// so the next offline start sees it. A company whose remote row does
// not exist yet gets bootstrapped from the local state.
func (g *Gateway) Load(ctx context.Context) (core.State, error) {
	var (
		localRaw, remoteRaw     string
		localFound, remoteFound bool
		remoteErr               error
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		localRaw, localFound, err = g.local.Get(egCtx, g.scope)
		if err != nil {
			return fmt.Errorf("load local state: %w", err)
		}
		return nil
	})
	if g.remote != nil {
		eg.Go(func() error {
			// Remote failures degrade to local, never abort the load.
			remoteRaw, remoteFound, remoteErr = g.remote.Get(egCtx, g.scope)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return core.State{}, err
	}

	state := core.DefaultState()
	if localFound {
		merged, err := core.MergeOverDefaults([]byte(localRaw))
		if err != nil {
			g.logger.Warn("local state unreadable, starting fresh", log.FieldError, err.Error())
		}
		state = merged
	}

	if g.remote == nil {
		return state, nil
	}

	switch {
	case remoteErr != nil:
		g.metrics.RemoteLoad("error")
		g.logger.Warn("remote load failed, using local state", log.FieldError, remoteErr.Error())

	case remoteFound:
		merged, err := core.MergeOverDefaults([]byte(remoteRaw))
		if err != nil {
			g.metrics.RemoteLoad("corrupt")
			g.logger.Warn("remote state unreadable, using local state", log.FieldError, err.Error())
			break
		}
		g.metrics.RemoteLoad("hit")
		state = merged
		// Sync the local copy without echoing back to the remote.
		if err := g.local.Put(ctx, g.scope, remoteRaw); err != nil {
			g.logger.Warn("local write-back failed", log.FieldError, err.Error())
		}

	default:
		// First load for this company: seed the remote row.
		g.metrics.RemoteLoad("bootstrap")
		raw, err := state.Encode()
		if err != nil {
			return core.State{}, err
		}
		if err := g.remote.Insert(ctx, g.scope, string(raw)); err != nil {
			g.logger.Warn("remote bootstrap failed", log.FieldError, err.Error())
		} else {
			g.logger.Info("remote state bootstrapped", log.FieldScope, g.scope)
		}
	}

	return state, nil
}

// Save persists the state. The local write is synchronous and its
// error is the caller's problem; the remote mirror is queued and never
// blocks. skipRemote suppresses the mirror, used for changes that came
// from the remote in the first place.
func (g *Gateway) Save(ctx context.Context, state core.State, skipRemote bool) error {
	raw, err := state.Encode()
	if err != nil {
		return err
	}
	data := string(raw)

	if err := g.local.Put(ctx, g.scope, data); err != nil {
		return fmt.Errorf("save local state: %w", err)
	}
	g.metrics.LocalSave()

	if g.notifier != nil {
		if err := g.notifier.StateSaved(ctx, g.scope, state.Revision); err != nil {
			g.logger.Warn("save notification failed", log.FieldError, err.Error())
		}
	}

	if g.remote == nil || skipRemote {
		return nil
	}
	g.enqueueMirror(data)
	return nil
}

// enqueueMirror hands a snapshot to the mirror goroutine. When the
// queue is full the oldest snapshot is dropped: the newest one
// supersedes everything before it anyway.
func (g *Gateway) enqueueMirror(data string) {
	for {
		select {
		case g.mirror <- data:
			return
		default:
			select {
			case <-g.mirror:
				g.metrics.RemoteSave("dropped")
			default:
			}
		}
	}
}

func (g *Gateway) mirrorLoop() {
	defer close(g.done)
	for data := range g.mirror {
		// The user's request already finished; the mirror write gets
		// its own lifetime.
		if err := g.remote.Upsert(context.Background(), g.scope, data); err != nil {
			g.metrics.RemoteSave("error")
			g.logger.Warn("remote mirror failed", log.FieldScope, g.scope, log.FieldError, err.Error())
			continue
		}
		g.metrics.RemoteSave("ok")
	}
}

// Close flushes pending mirror writes. Call after the HTTP server has
// stopped so no Save races the channel close.
func (g *Gateway) Close() {
	close(g.mirror)
	<-g.done
}
