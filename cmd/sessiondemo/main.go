package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-session-client/apiclient"
	"github.com/jrsteele09/go-session-client/identity/oidc"
	"github.com/jrsteele09/go-session-client/internal/config"
	"github.com/jrsteele09/go-session-client/session"
	"github.com/jrsteele09/go-session-client/storage"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/jrsteele09/go-session-client/token/refresh"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running session client: %s\n", err)
	}
	log.Printf("Session client stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.NewFileStore(c.GetTokenFilePath())
	tokens := token.New(store,
		token.WithRefreshSkew(c.GetRefreshSkew()),
		token.WithScopes(c.GetScopes()),
	)
	sessions := session.NewContainer()
	sessions.OnChange(func(s session.State) {
		switch {
		case s.Err != nil:
			log.Printf("Session error: %v\n", s.Err)
		case s.User != nil:
			log.Printf("Signed in as %s (%s)\n", s.User.DisplayName, s.User.Email)
		case !s.Loading:
			log.Printf("Signed out\n")
		}
	})

	provider, err := oidc.New(ctx, c.GetIssuerURL(), c.GetClientID(), c.GetScopes())
	if err != nil {
		return fmt.Errorf("oidc.New: %w", err)
	}

	coordinator := refresh.NewCoordinator(tokens, sessions, provider,
		refresh.WithCheckInterval(c.GetRefreshCheckInterval()),
	)
	go coordinator.Run(ctx)

	if info, ok := tokens.LoadFromStore(); ok && !tokens.ShouldRefresh() {
		sessions.Dispatch(session.SetUser{User: session.NewUser(token.ClaimsFromAccessToken(info.AccessToken), info)})
	} else if err := signIn(ctx, provider, tokens, sessions); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	client := apiclient.New(c.GetAPIBaseURL(), tokens, coordinator,
		apiclient.WithHTTPClient(&http.Client{Timeout: c.GetRequestTimeout()}),
	)
	if result := client.Get(ctx, "/me", nil); result.IsOk {
		log.Printf("Profile: %s\n", string(result.Data))
	} else {
		log.Printf("Profile request failed: %s\n", result.Message)
	}

	waitForStopSignal()
	coordinator.ForceSignOut(ctx, nil)
	return nil
}

func signIn(ctx context.Context, provider *oidc.Client, tokens *token.Manager, sessions *session.Container) error {
	sessions.Dispatch(session.SetLoading{Loading: true})

	res, err := provider.SignIn(ctx)
	if err != nil {
		sessions.Dispatch(session.SetError{Err: err})
		return err
	}

	info := tokens.SetTokenInfo(*res)
	sessions.Dispatch(session.SetUser{User: session.NewUser(res.Claims, info)})
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
