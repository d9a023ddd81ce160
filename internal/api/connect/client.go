package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/osa030/pano360/internal/app/notification"
)

// ControlClient is a client for the control service.
type ControlClient struct {
	start    *connect.Client[StartRequest, StatusResponse]
	stop     *connect.Client[Empty, StatusResponse]
	pause    *connect.Client[Empty, StatusResponse]
	resume   *connect.Client[Empty, StatusResponse]
	next     *connect.Client[Empty, StatusResponse]
	previous *connect.Client[Empty, StatusResponse]
	jump     *connect.Client[JumpRequest, StatusResponse]
	status   *connect.Client[Empty, StatusResponse]
	watch    *connect.Client[WatchRequest, notification.Notification]
}

// NewControlClient creates a client for the service at baseURL. The admin
// token is attached to every unary call.
func NewControlClient(httpClient connect.HTTPClient, baseURL, token string) *ControlClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts := []connect.ClientOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(NewTokenInterceptor(token)),
	}
	empty := func(procedure string) *connect.Client[Empty, StatusResponse] {
		return connect.NewClient[Empty, StatusResponse](httpClient, baseURL+procedure, opts...)
	}
	return &ControlClient{
		start:    connect.NewClient[StartRequest, StatusResponse](httpClient, baseURL+StartProcedure, opts...),
		stop:     empty(StopProcedure),
		pause:    empty(PauseProcedure),
		resume:   empty(ResumeProcedure),
		next:     empty(NextProcedure),
		previous: empty(PreviousProcedure),
		jump:     connect.NewClient[JumpRequest, StatusResponse](httpClient, baseURL+JumpProcedure, opts...),
		status:   empty(StatusProcedure),
		watch:    connect.NewClient[WatchRequest, notification.Notification](httpClient, baseURL+WatchProcedure, opts...),
	}
}

// Start starts a run.
func (c *ControlClient) Start(ctx context.Context, req *StartRequest) (*StatusResponse, error) {
	return unwrap(c.start.CallUnary(ctx, connect.NewRequest(req)))
}

// Stop stops the active run.
func (c *ControlClient) Stop(ctx context.Context) (*StatusResponse, error) {
	return callEmpty(ctx, c.stop)
}

// Pause pauses the live clip.
func (c *ControlClient) Pause(ctx context.Context) (*StatusResponse, error) {
	return callEmpty(ctx, c.pause)
}

// Resume resumes the live clip.
func (c *ControlClient) Resume(ctx context.Context) (*StatusResponse, error) {
	return callEmpty(ctx, c.resume)
}

// Next skips to the next clip.
func (c *ControlClient) Next(ctx context.Context) (*StatusResponse, error) {
	return callEmpty(ctx, c.next)
}

// Previous skips to the previous clip.
func (c *ControlClient) Previous(ctx context.Context) (*StatusResponse, error) {
	return callEmpty(ctx, c.previous)
}

// Jump jumps to the clip at index.
func (c *ControlClient) Jump(ctx context.Context, index int) (*StatusResponse, error) {
	return unwrap(c.jump.CallUnary(ctx, connect.NewRequest(&JumpRequest{Index: index})))
}

// Status returns the playback status.
func (c *ControlClient) Status(ctx context.Context) (*StatusResponse, error) {
	return callEmpty(ctx, c.status)
}

// Watch calls fn for every notification until the stream ends, ctx is
// cancelled or fn returns false.
func (c *ControlClient) Watch(ctx context.Context, fn func(*notification.Notification) bool) error {
	stream, err := c.watch.CallServerStream(ctx, connect.NewRequest(&WatchRequest{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if !fn(stream.Msg()) {
			return nil
		}
	}
	return stream.Err()
}

func callEmpty(ctx context.Context, c *connect.Client[Empty, StatusResponse]) (*StatusResponse, error) {
	return unwrap(c.CallUnary(ctx, connect.NewRequest(&Empty{})))
}

func unwrap(resp *connect.Response[StatusResponse], err error) (*StatusResponse, error) {
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
