package service

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Сервис описан вручную: сообщения, google.protobuf.Struct, без сгенерированных стабов.
const CalendarServiceName = "calendar.v1.CalendarService"

type CalendarServer interface {
	CreateAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAppointments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProviderSchedule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReplaceProviderSchedule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InitProviderSchedule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCalendarSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDayDetail(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListFreeSlots(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(CalendarServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + CalendarServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CalendarServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CalendarServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var CalendarServiceDesc = grpc.ServiceDesc{
	ServiceName: CalendarServiceName,
	HandlerType: (*CalendarServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateAppointment", CalendarServer.CreateAppointment),
		unaryHandler("UpdateAppointment", CalendarServer.UpdateAppointment),
		unaryHandler("DeleteAppointment", CalendarServer.DeleteAppointment),
		unaryHandler("GetAppointment", CalendarServer.GetAppointment),
		unaryHandler("ListAppointments", CalendarServer.ListAppointments),
		unaryHandler("GetProviderSchedule", CalendarServer.GetProviderSchedule),
		unaryHandler("ReplaceProviderSchedule", CalendarServer.ReplaceProviderSchedule),
		unaryHandler("InitProviderSchedule", CalendarServer.InitProviderSchedule),
		unaryHandler("GetCalendarSummary", CalendarServer.GetCalendarSummary),
		unaryHandler("GetDayDetail", CalendarServer.GetDayDetail),
		unaryHandler("ListFreeSlots", CalendarServer.ListFreeSlots),
		unaryHandler("ListEvents", CalendarServer.ListEvents),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "calendar/v1/calendar.proto",
}

func RegisterCalendarServer(s grpc.ServiceRegistrar, srv CalendarServer) {
	s.RegisterService(&CalendarServiceDesc, srv)
}
