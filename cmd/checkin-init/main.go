// checkin-init prepares a fresh database: it runs migrations, creates
// the two users, and seeds the default question catalog. Safe to rerun;
// existing users and questions are left alone.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"checkin/internal/auth"
	"checkin/internal/cli"
	"checkin/internal/core"
	applog "checkin/internal/log"
	"checkin/internal/storage"
)

type seedQuestion struct {
	text string
	kind core.QuestionKind
}

var defaultQuestions = []seedQuestion{
	{"How close did you feel to your partner this week?", core.KindScale},
	{"How happy were you with the time you spent together?", core.KindScale},
	{"What was the best moment of your week together?", core.KindText},
	{"Is there anything you would like to talk about?", core.KindText},
}

func main() {
	var (
		user1 = flag.String("user1", "Mina:mina", "first user as Name:slug")
		user2 = flag.String("user2", "Tema:tema", "second user as Name:slug")
		pass1 = flag.String("pass1", os.Getenv("CHECKIN_PASSWORD_1"), "first user's password")
		pass2 = flag.String("pass2", os.Getenv("CHECKIN_PASSWORD_2"), "second user's password")
	)
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	if *pass1 == "" || *pass2 == "" {
		logger.Error("both passwords are required (flags -pass1/-pass2 or CHECKIN_PASSWORD_1/2)")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx := context.Background()

	for _, seed := range []struct {
		spec, password string
	}{
		{*user1, *pass1},
		{*user2, *pass2},
	} {
		name, slug, err := splitUserSpec(seed.spec)
		if err != nil {
			logger.Error("bad user spec", "spec", seed.spec, "error", err)
			os.Exit(1)
		}
		if err := seedUser(ctx, repo, name, slug, seed.password); err != nil {
			logger.Error("seed user failed", "slug", slug, "error", err)
			os.Exit(1)
		}
		logger.Info("user ready", "slug", slug)
	}

	created, err := seedQuestions(ctx, repo)
	if err != nil {
		logger.Error("seed questions failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready", "questions_created", created, "path", cfg.SQLiteDBPath)
}

func splitUserSpec(spec string) (name, slug string, err error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected Name:slug, got %q", spec)
	}
	return parts[0], parts[1], nil
}

func seedUser(ctx context.Context, repo *storage.SQLiteRepository, name, slug, password string) error {
	if _, err := repo.GetUserBySlug(ctx, slug); err == nil {
		return nil // already there
	} else if !errors.Is(err, core.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = repo.CreateUser(ctx, name, slug, hash)
	return err
}

// seedQuestions inserts the default catalog only when no questions exist,
// so a rerun does not duplicate or resurrect deleted ones.
func seedQuestions(ctx context.Context, repo *storage.SQLiteRepository) (int, error) {
	existing, err := repo.ListQuestions(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for _, q := range defaultQuestions {
		if _, err := repo.CreateQuestion(ctx, q.text, q.kind); err != nil {
			return created, fmt.Errorf("create question %q: %w", q.text, err)
		}
		created++
	}
	return created, nil
}
