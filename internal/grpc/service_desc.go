package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "points.v1.PointsLedger"

// LedgerServer is the server API of points.v1.PointsLedger. Every method
// takes and returns a google.protobuf.Struct carrying camelCase JSON fields.
type LedgerServer interface {
	CreateTransaction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TransitionTransaction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApproveForContent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RejectForContent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExpirePending(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUserSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTransactions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(LedgerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + name,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(LedgerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateTransaction", Handler: unaryHandler("CreateTransaction", LedgerServer.CreateTransaction)},
		{MethodName: "TransitionTransaction", Handler: unaryHandler("TransitionTransaction", LedgerServer.TransitionTransaction)},
		{MethodName: "ApproveForContent", Handler: unaryHandler("ApproveForContent", LedgerServer.ApproveForContent)},
		{MethodName: "RejectForContent", Handler: unaryHandler("RejectForContent", LedgerServer.RejectForContent)},
		{MethodName: "ExpirePending", Handler: unaryHandler("ExpirePending", LedgerServer.ExpirePending)},
		{MethodName: "GetUserSummary", Handler: unaryHandler("GetUserSummary", LedgerServer.GetUserSummary)},
		{MethodName: "ListTransactions", Handler: unaryHandler("ListTransactions", LedgerServer.ListTransactions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "points/v1/ledger.proto",
}

// Client calls points.v1.PointsLedger over any connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with fields as the request message.
func (c *Client) Call(ctx context.Context, method string, fields map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
