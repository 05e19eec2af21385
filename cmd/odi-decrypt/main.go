package main

import (
	"io"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/odi-scan/pkg/cli"
	"github.com/denysvitali/odi-scan/pkg/crypt"
)

var args struct {
	Passphrase string `arg:"env:PASSPHRASE" help:"Passphrase the archive was encrypted with, or keychain:<element>"`
	Input      string `arg:"-i,--input" help:"Encrypted file (default: stdin)"`
	Output     string `arg:"-o,--output" help:"Decrypted PDF (default: stdout)"`
}

var log = logrus.StandardLogger()

func main() {
	arg.MustParse(&args)
	if err := cli.FillKeychainValues(&args); err != nil {
		log.Fatalf("fill keychain values: %v", err)
	}

	if args.Passphrase == "" {
		log.Fatalf("passphrase cannot be empty")
	}

	c, err := crypt.New(args.Passphrase)
	if err != nil {
		log.Fatalf("unable to create crypt: %v", err)
	}

	var in io.Reader = os.Stdin
	if args.Input != "" {
		f, err := os.Open(args.Input)
		if err != nil {
			log.Fatalf("unable to open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	reader, err := c.Decrypt(in)
	if err != nil {
		log.Fatalf("unable to decrypt: %v", err)
	}

	var out io.Writer = os.Stdout
	if args.Output != "" {
		f, err := os.Create(args.Output)
		if err != nil {
			log.Fatalf("unable to create output: %v", err)
		}
		defer f.Close()
		out = f
	}

	_, err = io.Copy(out, reader)
	if err != nil {
		log.Fatalf("unable to copy: %v", err)
	}
}
