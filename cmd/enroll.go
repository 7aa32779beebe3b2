package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"facegreeter/internal/config"
	"facegreeter/internal/names"
	"facegreeter/internal/recognition"
	"facegreeter/internal/store"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [image]",
	Short: "Enroll a user from an image file",
	Long: `Enroll a user: an AI provider describes the face in the image and the
description is stored as the recognition reference.

Single mode takes an image path and --name. Directory mode (--dir) enrolls
every image in a directory, using file names as user names.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Name of the person to enroll")
	enrollCmd.Flags().String("dir", "", "Enroll every image in a directory")
}

func imageExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}

func enrollOne(ctx context.Context, chain *recognition.Chain, st store.Store, name string, frame []byte) (*store.User, error) {
	description, err := chain.DescribeFace(ctx, frame)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	user := &store.User{
		ID:              uuid.New().String(),
		Name:            names.Clean(name),
		FaceDescription: description,
		RegisteredAt:    now,
		LastSeenAt:      now,
	}
	if err := st.Users().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}
	return user, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, _, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	chain, err := buildChain(ctx, cfg)
	if err != nil {
		return err
	}

	dir := mustGetString(cmd, "dir")
	if dir != "" {
		return enrollDirectory(ctx, chain, st, dir)
	}

	if len(args) != 1 {
		return fmt.Errorf("expected an image path (or --dir)")
	}
	name := mustGetString(cmd, "name")
	if name == "" {
		return fmt.Errorf("--name is required")
	}

	frame, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	user, err := enrollOne(ctx, chain, st, name, frame)
	if err != nil {
		return err
	}
	fmt.Printf("Enrolled %s (%s)\n", user.Name, user.ID)
	fmt.Printf("Face description: %s\n", user.FaceDescription)
	return nil
}

func enrollDirectory(ctx context.Context, chain *recognition.Chain, st store.Store, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory: %w", err)
	}

	var images []string
	for _, entry := range entries {
		if !entry.IsDir() && imageExtension(entry.Name()) {
			images = append(images, entry.Name())
		}
	}
	if len(images) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	enrolled, failed := 0, 0
	for _, image := range images {
		frame, err := os.ReadFile(filepath.Join(dir, image))
		if err != nil {
			fmt.Printf("\nSkipping %s: %v\n", image, err)
			failed++
			_ = bar.Add(1)
			continue
		}
		name := strings.TrimSuffix(image, filepath.Ext(image))
		if _, err := enrollOne(ctx, chain, st, name, frame); err != nil {
			fmt.Printf("\nFailed to enroll %s: %v\n", name, err)
			failed++
		} else {
			enrolled++
		}
		_ = bar.Add(1)
	}
	fmt.Printf("\nEnrolled %d user(s), %d failed\n", enrolled, failed)
	return nil
}
