package api

import (
	"context"
	"time"

	"github.com/matheus3301/inbox/internal/poll"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/status"
	"github.com/matheus3301/inbox/internal/store"
	mirror "github.com/matheus3301/inbox/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Accounts signs the daemon in and out. *account.Manager implements it.
type Accounts interface {
	Identity() *remote.User
	Login(ctx context.Context, email, password string) (*remote.User, error)
	Logout(ctx context.Context) error
}

// PollInfo reports the refresh loop. *poll.Poller implements it.
type PollInfo interface {
	State() poll.State
	Interval() time.Duration
}

// SessionService implements rpc.SessionServer.
type SessionService struct {
	profile   string
	baseURL   string
	startedAt time.Time
	machine   *status.Machine
	accounts  Accounts
	poller    PollInfo
	db        *store.DB
	dropped   func() uint64
	logger    *zap.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(profile, baseURL string, machine *status.Machine, accounts Accounts, poller PollInfo, db *store.DB, dropped func() uint64, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		profile:   profile,
		baseURL:   baseURL,
		startedAt: time.Now(),
		machine:   machine,
		accounts:  accounts,
		poller:    poller,
		db:        db,
		dropped:   dropped,
		logger:    logger,
	}
}

func (s *SessionService) Status(_ context.Context, _ *rpc.Empty) (*rpc.StatusResponse, error) {
	resp := &rpc.StatusResponse{
		Profile:       s.profile,
		Status:        string(s.machine.Current()),
		StatusMessage: s.machine.Reason(),
		Identity:      s.accounts.Identity(),
		BaseURL:       s.baseURL,
		UptimeMs:      time.Since(s.startedAt).Milliseconds(),
	}

	if s.poller != nil {
		resp.Polling = s.poller.State() == poll.Polling
		resp.PollInterval = s.poller.Interval().String()
	}
	if s.dropped != nil {
		resp.DroppedEvents = s.dropped()
	}

	// Mirror counts are best effort; a broken mirror must not hide the status.
	if s.db != nil {
		stats, err := mirror.ReadStats(s.db)
		if err != nil {
			s.logger.Warn("read mirror stats", zap.Error(err))
		} else {
			resp.Conversations = stats.Conversations
			resp.Messages = stats.Messages
			resp.UnreadCount = stats.UnreadCount
			resp.LastRefreshAt = stats.LastRefreshAt
			resp.SchemaVersion = stats.SchemaVersion
		}
	}

	return resp, nil
}

func (s *SessionService) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "email and password are required")
	}
	u, err := s.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, toStatus("login", err)
	}
	return &rpc.LoginResponse{User: *u}, nil
}

func (s *SessionService) Logout(ctx context.Context, _ *rpc.Empty) (*rpc.Empty, error) {
	if err := s.accounts.Logout(ctx); err != nil {
		return nil, toStatus("logout", err)
	}
	return &rpc.Empty{}, nil
}
