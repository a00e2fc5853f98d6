package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

// runAuth прогоняет интерсептор и возвращает бизнес, увиденный обработчиком.
func runAuth(t *testing.T, interceptor grpc.UnaryServerInterceptor, method string, md metadata.MD) (uuid.UUID, error) {
	t.Helper()
	ctx := metadata.NewIncomingContext(context.Background(), md)
	info := &grpc.UnaryServerInfo{FullMethod: method}

	var seen uuid.UUID
	_, err := interceptor(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
		seen, _ = BusinessIDFrom(ctx)
		return nil, nil
	})
	return seen, err
}

const createMethod = "/" + CalendarServiceName + "/CreateAppointment"

func TestAuthInterceptor_ValidToken(t *testing.T) {
	businessID := uuid.New()
	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"business_id": businessID.String(),
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	got, err := runAuth(t, AuthInterceptor(testSecret, false), createMethod,
		metadata.Pairs("authorization", "Bearer "+token))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != businessID {
		t.Fatalf("business = %s, want %s", got, businessID)
	}
}

func TestAuthInterceptor_RejectsBadTokens(t *testing.T) {
	businessID := uuid.New().String()
	future := time.Now().Add(time.Hour).Unix()

	cases := map[string]metadata.MD{
		"missing header": metadata.MD{},
		"not bearer":     metadata.Pairs("authorization", "Basic abc"),
		"wrong secret": metadata.Pairs("authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte("other"),
			jwt.MapClaims{"business_id": businessID, "exp": future})),
		"expired": metadata.Pairs("authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testSecret,
			jwt.MapClaims{"business_id": businessID, "exp": time.Now().Add(-time.Hour).Unix()})),
		"no claim": metadata.Pairs("authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testSecret,
			jwt.MapClaims{"exp": future})),
		"wrong alg": metadata.Pairs("authorization", "Bearer "+signToken(t, jwt.SigningMethodHS512, testSecret,
			jwt.MapClaims{"business_id": businessID, "exp": future})),
	}

	for name, md := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := runAuth(t, AuthInterceptor(testSecret, false), createMethod, md)
			wantCode(t, err, codes.Unauthenticated)
		})
	}
}

func TestAuthInterceptor_DisabledUsesMetadata(t *testing.T) {
	businessID := uuid.New()

	got, err := runAuth(t, AuthInterceptor(nil, true), createMethod,
		metadata.Pairs("x-business-id", businessID.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != businessID {
		t.Fatalf("business = %s, want %s", got, businessID)
	}

	_, err = runAuth(t, AuthInterceptor(nil, true), createMethod, metadata.MD{})
	wantCode(t, err, codes.Unauthenticated)
}

func TestAuthInterceptor_SkipsOtherServices(t *testing.T) {
	_, err := runAuth(t, AuthInterceptor(testSecret, false), "/grpc.health.v1.Health/Check", metadata.MD{})
	if err != nil {
		t.Fatalf("health check must bypass auth: %v", err)
	}
}
