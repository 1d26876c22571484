package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/esimov/facecap/utils"
	"github.com/spf13/cobra"
)

const HelpBanner = `
┌─┐┌─┐┌─┐┌─┐┌─┐┌─┐┌─┐
├┤ ├─┤│  ├┤ │  ├─┤├─┘
└  ┴ ┴└─┘└─┘└─┘┴ ┴┴

Face sample collector for face recognition training sets.
    Version: %s

`

// Version indicates the current build version.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "facecap",
	Short:         "Collect face samples from a webcam",
	Long:          fmt.Sprintf(HelpBanner, Version),
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	Execute()
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// The first signal stops the capture loop, a second one kills the process.
		<-ctx.Done()
		stop()
	}()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n",
			utils.DecorateText("✘ facecap:", utils.ErrorMessage),
			utils.DecorateText(err.Error(), utils.DefaultMessage),
		)
		stop()
		os.Exit(1)
	}
}
