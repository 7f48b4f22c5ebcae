package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls LiveService over gRPC with the JSON codec.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient creates a client for the server at addr. Extra options are
// applied after the defaults.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	defaults := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
	conn, err := grpc.NewClient(addr, append(defaults, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Tail(ctx context.Context, after, max int) (*TailResponse, error) {
	out := new(TailResponse)
	err := c.conn.Invoke(ctx, fullMethod("Tail"), &TailRequest{After: after, Max: max}, out)
	return out, err
}

func (c *Client) GetState(ctx context.Context) (*StateResponse, error) {
	out := new(StateResponse)
	err := c.conn.Invoke(ctx, fullMethod("GetState"), &StateRequest{}, out)
	return out, err
}

func (c *Client) SetPending(ctx context.Context, operator string) (*PendingResponse, error) {
	out := new(PendingResponse)
	err := c.conn.Invoke(ctx, fullMethod("SetPending"), &PendingRequest{Operator: operator}, out)
	return out, err
}

func (c *Client) Regenerate(ctx context.Context) (*RegenerateResponse, error) {
	out := new(RegenerateResponse)
	err := c.conn.Invoke(ctx, fullMethod("Regenerate"), &RegenerateRequest{}, out)
	return out, err
}

func (c *Client) Finalize(ctx context.Context) (*FinalizeResponse, error) {
	out := new(FinalizeResponse)
	err := c.conn.Invoke(ctx, fullMethod("Finalize"), &FinalizeRequest{}, out)
	return out, err
}
