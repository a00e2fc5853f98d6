package service

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type businessKey struct{}

// WithBusinessID кладёт бизнес вызывающего в контекст.
func WithBusinessID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, businessKey{}, id)
}

func BusinessIDFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(businessKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

var errNoBusiness = errors.New("business id is missing")

// AuthInterceptor достаёт business_id из Bearer-токена (HS256).
// При disabled бизнес берётся из метаданных x-business-id.
func AuthInterceptor(secret []byte, disabled bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+CalendarServiceName+"/") {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		var (
			businessID uuid.UUID
			err        error
		)
		if disabled {
			businessID, err = businessFromMetadata(md)
		} else {
			businessID, err = businessFromToken(md, secret)
		}
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(WithBusinessID(ctx, businessID), req)
	}
}

func businessFromMetadata(md metadata.MD) (uuid.UUID, error) {
	vals := md.Get("x-business-id")
	if len(vals) == 0 {
		return uuid.Nil, errNoBusiness
	}
	id, err := uuid.Parse(strings.TrimSpace(vals[0]))
	if err != nil {
		return uuid.Nil, errors.New("x-business-id must be a valid uuid")
	}
	return id, nil
}

func businessFromToken(md metadata.MD, secret []byte) (uuid.UUID, error) {
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return uuid.Nil, errors.New("authorization header is missing")
	}
	raw, ok := strings.CutPrefix(vals[0], "Bearer ")
	if !ok || raw == "" {
		return uuid.Nil, errors.New("authorization must be a bearer token")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, errors.New("invalid token")
	}

	sub, _ := claims["business_id"].(string)
	if sub == "" {
		return uuid.Nil, errNoBusiness
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, errors.New("business_id claim must be a valid uuid")
	}
	return id, nil
}
