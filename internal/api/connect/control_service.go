package connect

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pano360/internal/app/notification"
	"github.com/osa030/pano360/internal/app/playback"
	"github.com/osa030/pano360/internal/domain/playlist"
)

// Sequencer is the playback surface the control service drives.
type Sequencer interface {
	Start(startIndex, endIndex int) error
	Stop() error
	Pause() error
	Resume() error
	PlayNext() error
	PlayPrevious() error
	JumpToIndex(i int) error
	Status() playback.Status
	Playlist() *playlist.Playlist
}

var _ Sequencer = (*playback.Sequencer)(nil)

// ControlService implements the ControlService RPC.
type ControlService struct {
	seq    Sequencer
	notify *notification.Manager
	done   <-chan struct{}
}

// NewControlService creates a new ControlService. Watch streams end when
// done is closed.
func NewControlService(seq Sequencer, notify *notification.Manager, done <-chan struct{}) *ControlService {
	return &ControlService{
		seq:    seq,
		notify: notify,
		done:   done,
	}
}

// Handler returns the path prefix and handler serving every procedure.
// Unary procedures run through the given interceptors. Watch does not.
func (s *ControlService) Handler(interceptors ...connect.Interceptor) (string, http.Handler) {
	codec := connect.WithCodec(jsonCodec{})
	unary := connect.WithHandlerOptions(codec, connect.WithInterceptors(interceptors...))

	mux := http.NewServeMux()
	mux.Handle(StartProcedure, connect.NewUnaryHandler(StartProcedure, s.Start, unary))
	mux.Handle(StopProcedure, connect.NewUnaryHandler(StopProcedure, s.Stop, unary))
	mux.Handle(PauseProcedure, connect.NewUnaryHandler(PauseProcedure, s.Pause, unary))
	mux.Handle(ResumeProcedure, connect.NewUnaryHandler(ResumeProcedure, s.Resume, unary))
	mux.Handle(NextProcedure, connect.NewUnaryHandler(NextProcedure, s.Next, unary))
	mux.Handle(PreviousProcedure, connect.NewUnaryHandler(PreviousProcedure, s.Previous, unary))
	mux.Handle(JumpProcedure, connect.NewUnaryHandler(JumpProcedure, s.Jump, unary))
	mux.Handle(StatusProcedure, connect.NewUnaryHandler(StatusProcedure, s.Status, unary))
	mux.Handle(WatchProcedure, connect.NewServerStreamHandler(WatchProcedure, s.Watch, codec))
	return "/" + ServiceName + "/", mux
}

// Start handles run start requests.
func (s *ControlService) Start(
	ctx context.Context,
	req *connect.Request[StartRequest],
) (*connect.Response[StatusResponse], error) {
	return s.command(s.seq.Start(req.Msg.StartIndex, req.Msg.endIndex()))
}

// Stop handles run stop requests.
func (s *ControlService) Stop(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.command(s.seq.Stop())
}

// Pause handles pause requests.
func (s *ControlService) Pause(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.command(s.seq.Pause())
}

// Resume handles resume requests.
func (s *ControlService) Resume(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.command(s.seq.Resume())
}

// Next handles skip-to-next requests.
func (s *ControlService) Next(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.command(s.seq.PlayNext())
}

// Previous handles skip-to-previous requests.
func (s *ControlService) Previous(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.command(s.seq.PlayPrevious())
}

// Jump handles jump requests.
func (s *ControlService) Jump(
	ctx context.Context,
	req *connect.Request[JumpRequest],
) (*connect.Response[StatusResponse], error) {
	return s.command(s.seq.JumpToIndex(req.Msg.Index))
}

// Status returns the current playback status.
func (s *ControlService) Status(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.command(nil)
}

// Watch streams playback notifications, starting with the current state.
func (s *ControlService) Watch(
	ctx context.Context,
	req *connect.Request[WatchRequest],
	stream *connect.ServerStream[notification.Notification],
) error {
	st := s.seq.Status()
	initial := &notification.Notification{
		SequenceNo: s.notify.NextSequenceNo(),
		Type:       "initial_state",
		SessionID:  st.SessionID,
		Index:      st.Index,
		ClipID:     st.ClipID,
		Phase:      st.Phase.String(),
		At:         time.Now(),
	}
	if err := stream.Send(initial); err != nil {
		return err
	}

	adapter := &notificationStreamAdapter{stream: stream}
	subscriptionID := s.notify.Subscribe(adapter)
	defer s.notify.Unsubscribe(subscriptionID)

	select {
	case <-ctx.Done():
	case <-s.done:
	}
	return nil
}

func (s *ControlService) command(err error) (*connect.Response[StatusResponse], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(newStatusResponse(s.seq.Status(), s.seq.Playlist())), nil
}

// toConnectError maps playback error kinds onto Connect codes.
func toConnectError(err error) *connect.Error {
	var code connect.Code
	switch {
	case playback.IsConfiguration(err):
		code = connect.CodeInvalidArgument
	case playback.IsConcurrency(err):
		code = connect.CodeFailedPrecondition
	case playback.IsResource(err):
		code = connect.CodeUnavailable
	case errors.Is(err, playback.ErrClosed):
		code = connect.CodeUnavailable
	default:
		zlog.Error().Err(err).Msg("api: unexpected command error")
		code = connect.CodeInternal
	}
	return connect.NewError(code, err)
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
type notificationStreamAdapter struct {
	stream *connect.ServerStream[notification.Notification]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	return a.stream.Send(n)
}
