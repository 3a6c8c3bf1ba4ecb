package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "typekeeper.schema.v1.SchemaService"

// SchemaServer is the server side of the schema service.
type SchemaServer interface {
	Open(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Close(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reserve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RegisterQuery(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Send(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Fields(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Targets(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type methodFunc func(SchemaServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a SchemaServer method to grpc.MethodDesc.
func unaryHandler(method string, call methodFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SchemaServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(SchemaServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// SchemaServiceDesc describes the schema service for grpc.Server.
var SchemaServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchemaServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Open", SchemaServer.Open),
		unaryHandler("Close", SchemaServer.Close),
		unaryHandler("Reserve", SchemaServer.Reserve),
		unaryHandler("RegisterQuery", SchemaServer.RegisterQuery),
		unaryHandler("Send", SchemaServer.Send),
		unaryHandler("Fields", SchemaServer.Fields),
		unaryHandler("Targets", SchemaServer.Targets),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterSchemaServer registers srv on s.
func RegisterSchemaServer(s grpc.ServiceRegistrar, srv SchemaServer) {
	s.RegisterService(&SchemaServiceDesc, srv)
}

// SchemaClient calls the schema service over conn.
type SchemaClient struct {
	conn grpc.ClientConnInterface
}

// NewSchemaClient wraps a client connection.
func NewSchemaClient(conn grpc.ClientConnInterface) *SchemaClient {
	return &SchemaClient{conn: conn}
}

// Call invokes method with req.
func (c *SchemaClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
