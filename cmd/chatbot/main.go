package main

import (
	"os"

	"github.com/spf13/cobra"

	askcmder "github.com/localchat/chatbot/cmd/chatbot/ask"
	servecmder "github.com/localchat/chatbot/cmd/chatbot/serve"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatbot",
		Short:         "OpenAI-compatible chat API over a local language model",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(askcmder.NewAskCmd())

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
