package servercli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	"github.com/tempbottle/tidis/database"
	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/lib/utils"
	"github.com/tempbottle/tidis/redis/client"
	"github.com/tempbottle/tidis/redis/connection"
	"github.com/tempbottle/tidis/redis/protocol"
)

var remoteAddr string

// sender runs one command line and returns its reply
type sender func(args []string) redis.Reply

// openSender runs commands on a remote server when --addr is set, on the configured storage otherwise.
// Local commands share one connection so MULTI works.
func openSender(ctx context.Context) (sender, func(), error) {
	if remoteAddr != "" {
		c, err := client.MakeClient(remoteAddr)
		if err != nil {
			return nil, nil, err
		}
		send := func(args []string) redis.Reply {
			return c.Send(utils.ToCmdLine(args...))
		}
		return send, func() { _ = c.Close() }, nil
	}
	props, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := openServer(props)
	if err != nil {
		return nil, nil, err
	}
	return localSender(ctx, db), db.Close, nil
}

func localSender(ctx context.Context, db *database.Server) sender {
	conn := connection.NewFakeConn()
	return func(args []string) redis.Reply {
		return db.Exec(ctx, conn, utils.ToCmdLine(args...))
	}
}

var execCmd = &cobra.Command{
	Use:   "exec command [args...]",
	Short: "Run one command and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		send, closeFn, err := openSender(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		fmt.Fprintln(cmd.OutOrStdout(), formatReply(send(args)))
		return nil
	},
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run commands interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		send, closeFn, err := openSender(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "tidis> ",
			HistoryFile:     filepath.Join(os.TempDir(), ".tidis_history"),
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return err
		}
		defer rl.Close()
		return repl(send, rl, rl.Stdout())
	},
}

type lineReader interface {
	Readline() (string, error)
}

// repl reads command lines until EOF or quit
func repl(send sender, in lineReader, out io.Writer) error {
	for {
		line, err := in.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		args, err := shellwords.Parse(line)
		if err != nil {
			fmt.Fprintln(out, "(error) "+err.Error())
			continue
		}
		if len(args) == 0 {
			continue
		}
		switch strings.ToLower(args[0]) {
		case "quit", "exit":
			return nil
		}
		fmt.Fprintln(out, formatReply(send(args)))
	}
}

// formatReply renders a reply the way redis-cli does
func formatReply(reply redis.Reply) string {
	return formatIndented(reply, "")
}

func formatIndented(reply redis.Reply, indent string) string {
	switch r := reply.(type) {
	case protocol.ErrorReply:
		return "(error) " + r.Error()
	case *protocol.StatusReply:
		return r.Status
	case *protocol.OkReply:
		return "OK"
	case *protocol.PongReply:
		return "PONG"
	case *protocol.QueuedReply:
		return "QUEUED"
	case *protocol.IntReply:
		return "(integer) " + strconv.FormatInt(r.Code, 10)
	case *protocol.BulkReply:
		if r.Arg == nil {
			return "(nil)"
		}
		return strconv.Quote(string(r.Arg))
	case *protocol.NullBulkReply, *protocol.NullMultiBulkReply:
		return "(nil)"
	case *protocol.EmptyMultiBulkReply:
		return "(empty array)"
	case *protocol.MultiBulkReply:
		items := make([]redis.Reply, len(r.Args))
		for i, arg := range r.Args {
			items[i] = protocol.MakeBulkReply(arg)
		}
		return formatList(items, indent)
	case *protocol.MultiRawReply:
		return formatList(r.Replies, indent)
	}
	return strings.TrimSpace(string(reply.ToBytes()))
}

func formatList(items []redis.Reply, indent string) string {
	if len(items) == 0 {
		return "(empty array)"
	}
	width := len(strconv.Itoa(len(items)))
	lines := make([]string, len(items))
	for i, item := range items {
		prefix := fmt.Sprintf("%*d) ", width, i+1)
		nested := indent + strings.Repeat(" ", len(prefix))
		text := formatIndented(item, nested)
		if i == 0 {
			lines[i] = prefix + text
		} else {
			lines[i] = indent + prefix + text
		}
	}
	return strings.Join(lines, "\n")
}

// IsNum parses a listening port
func IsNum(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	if n < 1024 || n > 65535 {
		return 0, fmt.Errorf("listening port is greater than 65535 or less than 1024")
	}
	return n, nil
}

func init() {
	execCmd.Flags().StringVarP(&remoteAddr, "addr", "a", "", "address of a running server, the local storage is opened when empty")
	replCmd.Flags().StringVarP(&remoteAddr, "addr", "a", "", "address of a running server, the local storage is opened when empty")
	AddCommand(execCmd)
	AddCommand(replCmd)
}
