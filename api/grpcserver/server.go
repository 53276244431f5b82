package grpcserver

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"poolbook/codec"
	"poolbook/domain/orderbook"
	"poolbook/domain/pool"
	"poolbook/service"
)

// Rounds is the part of the round service the API exposes.
type Rounds interface {
	Intake(ctx context.Context, o orderbook.Order) (uint64, error)
	Latest(id pool.ID) (*service.Round, bool)
}

// Server adapts the round service to gRPC.
type Server struct {
	svc Rounds
}

func NewServer(svc Rounds) *Server {
	return &Server{svc: svc}
}

// -------------------- Commands --------------------

func (s *Server) SubmitOrder(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error) {
	o, err := codec.DecodeOrder(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	seq, err := s.svc.Intake(ctx, o)
	switch {
	case errors.Is(err, service.ErrUnknownPool):
		return nil, status.Error(codes.NotFound, err.Error())
	case err != nil:
		slog.Error("GRPC: intake failed", "pool", o.Pool, "error", err)
		return nil, status.Error(codes.Internal, "intake failed")
	}

	slog.Debug("GRPC: order accepted", "pool", o.Pool, "side", o.Side, "price", o.Price, "seq", seq)
	return wrapperspb.UInt64(seq), nil
}

// -------------------- Queries --------------------

func (s *Server) GetRound(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	r, err := s.latest(req)
	if err != nil {
		return nil, err
	}
	env := &codec.Round{
		ID:      r.ID,
		Seq:     r.Seq,
		Pool:    r.Pool,
		BuiltAt: r.BuiltAt.UnixNano(),
		Book:    r.Book,
	}
	return wrapperspb.Bytes(codec.EncodeRound(env)), nil
}

func (s *Server) GetBounds(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	r, err := s.latest(req)
	if err != nil {
		return nil, err
	}
	sum := r.Summary()
	fields := map[string]any{
		"round":      sum.Round,
		"seq":        float64(sum.Seq),
		"pool":       sum.Pool.String(),
		"strategy":   sum.Strategy,
		"bids":       float64(sum.Bids),
		"asks":       float64(sum.Asks),
		"bid_levels": float64(sum.BidLevels),
		"ask_levels": float64(sum.AskLevels),
		"lowest":     sum.Lowest.String(),
		"highest":    sum.Highest.String(),
		"digest":     sum.Digest,
		"has_amm":    sum.HasAMM,
	}
	if sum.BestBid != nil {
		fields["best_bid"] = levelFields(sum.BestBid)
	}
	if sum.BestAsk != nil {
		fields["best_ask"] = levelFields(sum.BestAsk)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func levelFields(l *service.Level) map[string]any {
	return map[string]any{
		"price":        l.Price.String(),
		"quantity":     l.Quantity,
		"orders":       float64(l.Orders),
		"head_arrival": float64(l.HeadArrival),
	}
}

func (s *Server) latest(req *wrapperspb.BytesValue) (*service.Round, error) {
	var id pool.ID
	if len(req.GetValue()) != len(id) {
		return nil, status.Errorf(codes.InvalidArgument, "pool id must be %d bytes", len(id))
	}
	copy(id[:], req.GetValue())

	r, ok := s.svc.Latest(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no round for pool %s", id)
	}
	return r, nil
}
