// Command users manages the credentials file of the chart server.
//
//	users [-file creds.json] add|remove|verify <username>
//
// The password is read from MARKETCHART_PASSWORD, or else from the first
// line of stdin.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"marketchart/config"
	"marketchart/internal/auth"
	"marketchart/logger"

	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "", "credentials file, defaults to server.credentials_file")
	flag.Parse()
	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: users [-file creds.json] add|remove|verify <username>")
		os.Exit(2)
	}
	command, username := flag.Arg(0), flag.Arg(1)

	// viper config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *file == "" {
		*file = cfg.Server.CredentialsFile
	}
	if *file == "" {
		fmt.Fprintln(os.Stderr, "no credentials file: set -file or server.credentials_file")
		os.Exit(2)
	}

	// zap logger
	log, err := logger.New("users", cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	a := auth.NewAuthenticator(auth.NewJSONFileStore(*file), auth.DefaultParams, log)
	if err := run(a, command, username, os.Stdin); err != nil {
		log.Fatal("users command failed", zap.String("command", command), zap.String("user", username), zap.Error(err))
	}
}

func run(a *auth.Authenticator, command, username string, stdin io.Reader) error {
	switch command {
	case "add":
		password, err := readPassword(stdin)
		if err != nil {
			return err
		}
		return a.AddUser(username, password)

	case "remove":
		return a.RemoveUser(username)

	case "verify":
		password, err := readPassword(stdin)
		if err != nil {
			return err
		}
		ok, err := a.Verify(username, password)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("invalid credentials")
		}
		fmt.Println("ok")
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func readPassword(stdin io.Reader) (string, error) {
	if password := os.Getenv("MARKETCHART_PASSWORD"); password != "" {
		return password, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}
