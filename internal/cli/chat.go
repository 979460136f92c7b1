package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/retailsight/internal/domain/chat"
)

func (r *root) newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the customer support assistant",
		Long: `Start a support conversation. Each line read from stdin is one customer
turn; an empty line is ignored and "exit" or "quit" ends the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.load(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			session := s.Chat.NewSession()
			printAssistant(w, session.Messages()[0])

			sc := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(w, "> ")
				if !sc.Scan() {
					fmt.Fprintln(w)
					return sc.Err()
				}
				line := strings.TrimSpace(sc.Text())
				switch strings.ToLower(line) {
				case "":
					continue
				case "exit", "quit":
					return nil
				}

				_, err := spin(cmd, "Thinking...", func() (*chat.Session, error) {
					return s.Chat.SendTurn(cmd.Context(), session, line)
				})
				msgs := session.Messages()
				printAssistant(w, msgs[len(msgs)-1])
				if err != nil && cmd.Context().Err() != nil {
					return err
				}
			}
		},
	}
}

func printAssistant(w io.Writer, m chat.Message) {
	if m.Failed {
		printError(w, m.Text)
		return
	}
	headerColor.Fprint(w, "assistant: ")
	fmt.Fprintln(w, m.Text)
}
