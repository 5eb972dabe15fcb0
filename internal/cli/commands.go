package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/auth"
)

func (a *App) cmdStatus(ctx context.Context) error {
	st, err := a.syncer.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "server:     %s\n", orDash(st.ServerURL))
	fmt.Fprintf(a.out, "configured: %v\n", st.Configured)
	fmt.Fprintf(a.out, "signed in:  %v\n", st.Authenticated)
	if st.LastSyncAt != nil {
		fmt.Fprintf(a.out, "last sync:  %s\n", time.Unix(*st.LastSyncAt, 0).UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintf(a.out, "last sync:  never\n")
	}
	fmt.Fprintf(a.out, "pending:    %d\n", st.PendingChanges)
	return nil
}

func (a *App) cmdSync(ctx context.Context) error {
	res := a.syncer.SyncWithProgress(ctx, func(stage string) {
		fmt.Fprintf(a.out, "... %s\n", stage)
	})
	if !res.Success {
		return fmt.Errorf("sync failed: %s", res.Error)
	}
	fmt.Fprintf(a.out, "pushed %d, pulled %d, conflicts %d\n", res.Pushed, res.Pulled, res.Conflicts)
	return nil
}

func (a *App) cmdPurge(ctx context.Context) error {
	n, err := a.syncer.Purge(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "purged %d tombstones\n", n)
	return nil
}

// cmdLogin stores a token set obtained out of band from the auth service.
// The engine never talks to the login endpoint itself.
func (a *App) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	accessToken := fs.String("access-token", "", "access token issued by the auth service")
	refreshToken := fs.String("refresh-token", "", "refresh token issued by the auth service")
	userID := fs.String("user-id", "", "id of the signed-in user")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accessToken == "" || *userID == "" {
		return fmt.Errorf("login requires -access-token and -user-id")
	}

	t := auth.Tokens{
		AccessToken:  *accessToken,
		RefreshToken: *refreshToken,
		UserID:       *userID,
	}
	if err := a.tokens.Save(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s\n", *userID)
	return nil
}

func (a *App) cmdCollections(ctx context.Context) error {
	colls, err := a.st.Collections.List(ctx)
	if err != nil {
		return err
	}
	if len(colls) == 0 {
		fmt.Fprintln(a.out, "no collections")
		return nil
	}
	for i := range colls {
		c := &colls[i]
		owner := "owned"
		if c.SharedBy != nil {
			owner = "shared by " + *c.SharedBy
		}
		fmt.Fprintf(a.out, "%s  %-30s %-8s %4d words  %s\n", c.ID, c.Name, c.Language, c.WordCount, owner)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
