package test

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/store/memory"
)

// ExampleNew wires an engine against Redis and the memory credential store.
func ExampleNew() {
	cfg := skyAuth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")

	engine, err := skyAuth.New().
		WithConfig(cfg).
		WithRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})).
		WithUserProvider(memory.New()).
		Build()
	if err != nil {
		return
	}
	defer engine.Close()
}

// ExampleEngine_Login shows how a caller branches on the second factor and
// on rate limiting.
func ExampleEngine_Login() {
	var engine *skyAuth.Engine
	ctx := skyAuth.WithClientIP(context.Background(), "198.51.100.4")

	res, err := engine.Login(ctx, skyAuth.LoginRequest{Identifier: "crew@sky.example", Password: "secret"})
	var rl *skyAuth.RateLimitError
	switch {
	case errors.As(err, &rl):
		fmt.Println("retry after", rl.RetryAfter)
	case err != nil:
		fmt.Println("login failed")
	case res.RequiresTwoFactor:
		fmt.Println("challenge", res.TempToken)
	default:
		fmt.Println("signed in")
	}
}
