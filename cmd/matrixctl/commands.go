package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/matrixtui/internal/archive"
	"github.com/matheus3301/matrixtui/internal/config"
	"github.com/matheus3301/matrixtui/internal/control"
	"github.com/matheus3301/matrixtui/internal/profile"
	"github.com/matheus3301/matrixtui/internal/store"
)

const checkTimeout = 3 * time.Second

type accountStatus struct {
	Account string `json:"account"`
	Status  string `json:"status"`
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the sync state of each account in a running client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := opts.name()
			if err != nil {
				return err
			}
			cfg, err := config.Load(profile.ConfigPath(name))
			if err != nil {
				return err
			}
			c, err := control.Dial(profile.SocketPath(name))
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()
			if _, err := c.Check(ctx, ""); err != nil {
				return fmt.Errorf("client for profile %q is not running", name)
			}

			out := make([]accountStatus, 0, len(cfg.Accounts))
			for _, a := range cfg.Accounts {
				st, err := c.Check(ctx, a.UserID)
				status := describe(st)
				if err != nil {
					status = "unknown"
				}
				out = append(out, accountStatus{Account: a.UserID, Status: status})
			}
			if opts.json {
				return outputJSON(cmd.OutOrStdout(), out)
			}
			if len(out) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts.")
			}
			for _, s := range out {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s\n", s.Account, s.Status)
			}
			return nil
		},
	}
}

func describe(st healthpb.HealthCheckResponse_ServingStatus) string {
	switch st {
	case healthpb.HealthCheckResponse_SERVING:
		return "synced"
	case healthpb.HealthCheckResponse_NOT_SERVING:
		return "not synced"
	}
	return "unknown"
}

type accountInfo struct {
	UserID     string `json:"user_id"`
	Homeserver string `json:"homeserver"`
	DeviceID   string `json:"device_id"`
	Token      string `json:"access_token"`
}

func newAccountsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the saved logins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := opts.name()
			if err != nil {
				return err
			}
			cfg, err := config.Load(profile.ConfigPath(name))
			if err != nil {
				return err
			}
			out := make([]accountInfo, 0, len(cfg.Accounts))
			for _, a := range cfg.Accounts {
				out = append(out, accountInfo{
					UserID:     a.UserID,
					Homeserver: a.Homeserver,
					DeviceID:   a.DeviceID,
					Token:      redact(a.AccessToken),
				})
			}
			if opts.json {
				return outputJSON(cmd.OutOrStdout(), out)
			}
			if len(out) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts.")
			}
			for _, a := range out {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %-30s %s\n", a.UserID, a.Homeserver, a.DeviceID)
			}
			return nil
		},
	}
}

// redact keeps only the last four characters of a token.
func redact(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return "…" + token[len(token)-4:]
}

func openArchive(opts *options) (*store.DB, error) {
	name, err := opts.name()
	if err != nil {
		return nil, err
	}
	return store.OpenReadOnly(profile.ArchivePath(name))
}

func newRoomsCmd(opts *options) *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List archived rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openArchive(opts)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			rooms, err := db.ListRooms(account)
			if err != nil {
				return err
			}
			if opts.json {
				return outputJSON(cmd.OutOrStdout(), rooms)
			}
			if len(rooms) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No rooms.")
			}
			for _, r := range rooms {
				kind := "room"
				if r.IsDM {
					kind = "dm"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-4s %-40s %s\n", r.Name, kind, r.RoomID, r.AccountID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "only rooms of this account")
	return cmd
}

func newSearchCmd(opts *options) *cobra.Command {
	var (
		room  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search archived messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openArchive(opts)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			results, err := db.SearchMessages(strings.Join(args, " "), room, limit)
			if err != nil {
				return err
			}
			if opts.json {
				return outputJSON(cmd.OutOrStdout(), results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results.")
			}
			for _, r := range results {
				when := humanize.Time(time.UnixMilli(r.Message.Timestamp))
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-20s %s: %s\n", when, r.RoomName, r.Message.Sender, r.Message.Body)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "only search this room id")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}

type statsOutput struct {
	Rooms         int        `json:"rooms"`
	Messages      int        `json:"messages"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	LastWrite     *time.Time `json:"last_write,omitempty"`
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show archive counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openArchive(opts)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			st, err := db.Stats()
			if err != nil {
				return err
			}
			written, err := archive.LastWrite(db)
			if err != nil {
				return err
			}
			out := statsOutput{Rooms: st.Rooms, Messages: st.Messages}
			if st.LastMessageAt > 0 {
				t := time.UnixMilli(st.LastMessageAt)
				out.LastMessageAt = &t
			}
			if !written.IsZero() {
				out.LastWrite = &written
			}
			if opts.json {
				return outputJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Rooms:        %s\n", humanize.Comma(int64(out.Rooms)))
			fmt.Fprintf(w, "Messages:     %s\n", humanize.Comma(int64(out.Messages)))
			fmt.Fprintf(w, "Last message: %s\n", humanTime(out.LastMessageAt))
			fmt.Fprintf(w, "Last write:   %s\n", humanTime(out.LastWrite))
			return nil
		},
	}
}

func humanTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return humanize.Time(*t)
}

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show profile paths",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the files used by the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := opts.name()
			if err != nil {
				return err
			}
			paths := map[string]string{
				"dir":     profile.Dir(name),
				"config":  profile.ConfigPath(name),
				"archive": profile.ArchivePath(name),
				"socket":  profile.SocketPath(name),
				"log":     profile.LogPath(name),
			}
			if opts.json {
				return outputJSON(cmd.OutOrStdout(), paths)
			}
			for _, k := range []string{"dir", "config", "archive", "socket", "log"} {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", k+":", paths[k])
			}
			return nil
		},
	})
	return cmd
}
