package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/VoiceClient/internal/adapters/audio"
	"github.com/dkeye/VoiceClient/internal/adapters/rtc"
	relaysignal "github.com/dkeye/VoiceClient/internal/adapters/signal"
	"github.com/dkeye/VoiceClient/internal/app"
	"github.com/dkeye/VoiceClient/internal/config"
	"github.com/dkeye/VoiceClient/internal/domain"
)

func main() {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("voiceclient exited with error")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		relayURL string
		channel  string
		name     string
	)

	cmd := &cobra.Command{
		Use:          "voiceclient",
		Short:        "Join a voice channel and negotiate peer audio links",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), relayURL, channel, name)
		},
	}

	cmd.Flags().StringVar(&relayURL, "relay", "", "relay signaling endpoint (overrides config)")
	cmd.Flags().StringVarP(&channel, "channel", "c", "", "voice channel to join")
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	_ = cmd.MarkFlagRequired("channel")

	return cmd
}

func run(ctx context.Context, relayURL, channel, name string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if relayURL != "" {
		cfg.RelayURL = relayURL
	}
	if name != "" {
		cfg.Username = name
	}

	localID := domain.ParticipantID(uuid.NewString())
	if _, err := domain.NewParticipant(localID, cfg.Username); err != nil {
		return fmt.Errorf("display name %q: %w", cfg.Username, err)
	}

	sig := relaysignal.NewClient(cfg.RelayURL, relaysignal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	})
	if err := sig.Connect(ctx); err != nil {
		return err
	}
	defer sig.Close()

	sinks := app.NewAudioSinkManager(audio.Factory(audio.TrackOpener()))
	source, err := audio.NewCaptureTrack()
	if err != nil {
		return err
	}

	ctrl := app.NewVoiceRoomController(app.RoomConfig{
		LocalID:        localID,
		ReadyTimeout:   cfg.ReadyTimeout,
		JoinTimeout:    cfg.JoinTimeout,
		MembersTimeout: cfg.MembersTimeout,
		Source:         source,
	}, sig, rtc.Factory(cfg.WebRTC()), sinks)
	defer ctrl.Close()

	ch := domain.ChannelID(channel)
	if err := ctrl.Join(ctx, ch); err != nil {
		return err
	}
	log.Info().Str("channel", channel).Int("members", len(ctrl.Roster())).Msg("voice channel joined")

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	ctrl.Leave(ch)
	log.Info().Msg("Client exited gracefully")
	return nil
}
