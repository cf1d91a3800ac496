package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/locshare/locshare/internal/influx"
	"github.com/locshare/locshare/internal/logging"
	"github.com/locshare/locshare/internal/roster"
	"github.com/locshare/locshare/internal/session"
	"github.com/locshare/locshare/internal/store"
)

// Dependencies holds all dependencies for the monitor service. Influx,
// Roster, Store and Writer may each be nil depending on the run mode.
type Dependencies struct {
	LogManager *logging.SlogManager
	Session    *session.Context
	Roster     *roster.Reconciler
	Store      *store.Store
	Writer     *store.Writer
	Influx     *influx.Manager
	StatusDir  string
}

// Status is the periodic snapshot of program health written to status.txt.
type Status struct {
	Time           time.Time `json:"time"`
	Namespace      string    `json:"namespace"`
	UptimeSecs     float64   `json:"uptimeSecs"`
	RosterStatus   string    `json:"rosterStatus,omitempty"`
	Filter         string    `json:"filter,omitempty"`
	VisibleMarkers int       `json:"visibleMarkers"`
	LastApplyMs    float64   `json:"lastApplyMs"`
	Subscribers    int       `json:"subscribers"`
	PendingWrites  int       `json:"pendingWrites"`
	LastWriteMs    float64   `json:"lastWriteMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus collects the current program status.
func (s *Service) GetProgramStatus() Status {
	info := s.deps.Session.Get()

	status := Status{
		Time:       time.Now(),
		Namespace:  info.Namespace,
		UptimeSecs: time.Since(info.StartedAt).Seconds(),
	}

	if s.deps.Roster != nil {
		last := s.deps.Roster.LastStatus()
		status.RosterStatus = last.Kind.String()
		status.Filter = string(last.Key)
		status.VisibleMarkers = s.deps.Roster.VisibleCount()
		status.LastApplyMs = float64(s.deps.Roster.LastApplyDuration().Microseconds()) / 1000.0
	}

	if s.deps.Store != nil {
		status.Subscribers = s.deps.Store.SubscriberCount()
	}

	if s.deps.Writer != nil {
		status.PendingWrites = s.deps.Writer.Pending()
		status.LastWriteMs = float64(s.deps.Writer.LastWriteDuration().Microseconds()) / 1000.0
	}

	return status
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		statusFile, err := os.Create(s.deps.StatusDir + "/status.txt")
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		for {
			select {
			case <-s.stopChan:
				return
			default:
				time.Sleep(1000 * time.Millisecond)

				status := s.GetProgramStatus()

				if statusFile != nil {
					data, err := json.MarshalIndent(status, "", "  ")
					if err != nil {
						data = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(append(data, '\n'))
				}

				s.writePoints(status)
			}
		}
	}()

	return nil
}

// writePoints forwards the status to InfluxDB when a manager is wired.
func (s *Service) writePoints(status Status) {
	if s.deps.Influx == nil {
		return
	}

	ctx := context.Background()
	logger := s.deps.LogManager.Logger()

	if s.deps.Roster != nil {
		point := influx.RosterPoint(
			status.Namespace,
			s.deps.Roster.LastStatus(),
			status.VisibleMarkers,
			s.deps.Roster.LastApplyDuration(),
		)
		if err := s.deps.Influx.WritePoint(ctx, influx.BucketRosterStatus, point); err != nil {
			logger.Error("Error writing roster status point", "error", err)
		}
	}

	if s.deps.Store != nil || s.deps.Writer != nil {
		var writeDur time.Duration
		if s.deps.Writer != nil {
			writeDur = s.deps.Writer.LastWriteDuration()
		}
		point := influx.FeedPoint(status.Namespace, status.Subscribers, status.PendingWrites, writeDur)
		if err := s.deps.Influx.WritePoint(ctx, influx.BucketFeedPerformance, point); err != nil {
			logger.Error("Error writing feed performance point", "error", err)
		}
	}
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
