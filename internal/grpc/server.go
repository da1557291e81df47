package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"points-service/internal/auth"
	"points-service/internal/models"
	"points-service/internal/services"
	"points-service/pkg/apperror"
)

type Server struct {
	Ledger    *services.LedgerService
	Content   *services.ContentLinkageService
	Expiry    *services.ExpiryService
	Reporting *services.ReportingService
	Log       logrus.FieldLogger
}

// NewGRPCServer builds a grpc.Server with logging and bearer token
// interceptors and the ledger service registered.
func NewGRPCServer(srv *Server, jwtSecret string) *grpc.Server {
	g := grpc.NewServer(grpc.ChainUnaryInterceptor(
		UnaryLoggingInterceptor(srv.Log),
		UnaryAuthInterceptor(jwtSecret),
	))
	g.RegisterService(&ServiceDesc, srv)
	return g
}

// StartGRPCServer serves g on port until it is stopped.
func StartGRPCServer(port string, g *grpc.Server) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", port, err)
	}
	return g.Serve(lis)
}

func UnaryAuthInterceptor(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "authorization required")
		}
		raw := strings.TrimSpace(values[0])
		if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
			raw = raw[7:]
		}
		identity, err := auth.ParseToken(secret, raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}
		return handler(auth.NewContext(ctx, identity), req)
	}
}

func UnaryLoggingInterceptor(log logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := log.WithFields(logrus.Fields{
			"method":  info.FullMethod,
			"code":    status.Code(err).String(),
			"latency": time.Since(start).String(),
		})
		switch status.Code(err) {
		case codes.OK:
			entry.Info("rpc")
		case codes.Internal, codes.Unknown:
			entry.WithError(err).Error("rpc")
		default:
			entry.Warn("rpc")
		}
		return resp, err
	}
}

// toStatus maps the error taxonomy onto gRPC codes. Internal errors are logged
// here because the returned status no longer carries the cause.
func (s *Server) toStatus(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch {
	case errors.Is(err, apperror.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, apperror.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, apperror.ErrInvalidState):
		code = codes.FailedPrecondition
	case errors.Is(err, apperror.ErrUnauthorized):
		code = codes.Unauthenticated
	case errors.Is(err, apperror.ErrForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		s.Log.WithError(err).Error("ledger call failed")
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

func identity(ctx context.Context) auth.Identity {
	id, _ := auth.IdentityFrom(ctx)
	return id
}

func requireAdmin(ctx context.Context) error {
	if !identity(ctx).IsAdmin() {
		return status.Error(codes.PermissionDenied, "admin access required")
	}
	return nil
}

func (s *Server) CreateTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fields(req)
	userID, err := f.uintVal("userId")
	if err != nil {
		return nil, err
	}
	points, ok, err := f.intVal("points")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "points is required")
	}
	caller := identity(ctx)

	trx, err := s.Ledger.Create(ctx, services.CreateTransactionDTO{
		UserId:      userID,
		ActionType:  f.str("actionType"),
		ReferenceId: f.optStr("referenceId"),
		Points:      points,
		Description: f.str("description"),
		Status:      models.TransactionStatus(strings.ToLower(f.str("status"))),
		Notes:       f.optStr("notes"),
		Actor:       services.Actor{ID: caller.Subject, Admin: caller.IsAdmin()},
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(trx)
}

func (s *Server) TransitionTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	f := fields(req)
	approvedBy := f.str("approvedBy")
	if approvedBy == "" {
		approvedBy = identity(ctx).Subject
	}
	trx, err := s.Ledger.Transition(ctx, services.TransitionDTO{
		ID:         f.str("id"),
		Action:     f.str("action"),
		ApprovedBy: approvedBy,
		Notes:      f.optStr("notes"),
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(trx)
}

func (s *Server) ApproveForContent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	res, err := s.Content.ApproveForContent(ctx, fields(req).str("referenceId"), identity(ctx).Subject)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(res)
}

func (s *Server) RejectForContent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	f := fields(req)
	res, err := s.Content.RejectForContent(ctx, f.str("referenceId"), identity(ctx).Subject, f.str("reason"))
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(res)
}

func (s *Server) ExpirePending(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	maxAge, _, err := fields(req).intVal("maxAgeDays")
	if err != nil {
		return nil, err
	}
	var res *services.SweepResult
	if maxAge != 0 {
		res, err = s.Expiry.ExpirePending(ctx, maxAge)
	} else {
		res, err = s.Expiry.Sweep(ctx)
	}
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(res)
}

func (s *Server) GetUserSummary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := fields(req).uintVal("userId")
	if err != nil {
		return nil, err
	}
	if !canSee(ctx, userID) {
		return nil, status.Error(codes.PermissionDenied, "not allowed to access another user's points")
	}
	summary, err := s.Reporting.GetUserSummary(ctx, userID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(summary)
}

func (s *Server) ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fields(req)
	filter := services.TransactionFilter{
		ActionType:  f.str("actionType"),
		Status:      strings.ToLower(f.str("status")),
		ReferenceId: f.str("referenceId"),
	}
	if _, ok := f["userId"]; ok {
		uid, err := f.uintVal("userId")
		if err != nil {
			return nil, err
		}
		filter.UserId = &uid
	}
	if caller := identity(ctx); !caller.IsAdmin() {
		own, err := strconv.ParseUint(caller.Subject, 10, 64)
		if err != nil || (filter.UserId != nil && *filter.UserId != uint(own)) {
			return nil, status.Error(codes.PermissionDenied, "not allowed to access another user's points")
		}
		uid := uint(own)
		filter.UserId = &uid
	}

	var err error
	if filter.StartDate, err = f.timeVal("startDate"); err != nil {
		return nil, err
	}
	if filter.EndDate, err = f.timeVal("endDate"); err != nil {
		return nil, err
	}
	if filter.Page, _, err = f.intVal("page"); err != nil {
		return nil, err
	}
	if filter.Limit, _, err = f.intVal("limit"); err != nil {
		return nil, err
	}

	res, err := s.Reporting.GetTransactions(ctx, filter)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(res)
}

func canSee(ctx context.Context, userID uint) bool {
	id := identity(ctx)
	return id.IsAdmin() || id.Subject == fmt.Sprint(userID)
}

// toStruct converts a JSON-tagged value into a Struct message.
func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

type structFields map[string]*structpb.Value

func fields(req *structpb.Struct) structFields {
	return req.GetFields()
}

func (f structFields) str(key string) string {
	return strings.TrimSpace(f[key].GetStringValue())
}

func (f structFields) optStr(key string) *string {
	v, ok := f[key]
	if !ok {
		return nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil
	}
	s := v.GetStringValue()
	return &s
}

// intVal reads a whole number; ok is false when the key is absent.
func (f structFields) intVal(key string) (int, bool, error) {
	v, ok := f[key]
	if !ok {
		return 0, false, nil
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, true, status.Errorf(codes.InvalidArgument, "%s must be an integer", key)
	}
	return int(n.NumberValue), true, nil
}

func (f structFields) uintVal(key string) (uint, error) {
	n, ok, err := f.intVal(key)
	if err != nil {
		return 0, err
	}
	if !ok || n <= 0 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a positive integer", key)
	}
	return uint(n), nil
}

func (f structFields) timeVal(key string) (*time.Time, error) {
	s := f.str(key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be RFC3339", key)
	}
	t = t.UTC()
	return &t, nil
}
