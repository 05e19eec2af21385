package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fyne.io/fyne/v2/app"
	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	backend "github.com/denysvitali/odi-scan"
	"github.com/denysvitali/odi-scan/pkg/cli"
	"github.com/denysvitali/odi-scan/pkg/device"
	"github.com/denysvitali/odi-scan/pkg/device/escl"
	"github.com/denysvitali/odi-scan/pkg/device/folder"
	"github.com/denysvitali/odi-scan/pkg/export"
	"github.com/denysvitali/odi-scan/pkg/logutils"
	"github.com/denysvitali/odi-scan/pkg/preview"
	"github.com/denysvitali/odi-scan/pkg/session"
	"github.com/denysvitali/odi-scan/pkg/storage"
	"github.com/denysvitali/odi-scan/pkg/storage/b2"
	"github.com/denysvitali/odi-scan/pkg/storage/model"
	"github.com/denysvitali/odi-scan/pkg/ui"
)

var args struct {
	Backend        string        `arg:"--backend,env:SCAN_BACKEND" default:"escl" help:"Scanning backend: escl or folder"`
	ScannerNames   string        `arg:"--scanner-names,env:SCANNER_NAMES" help:"Comma separated eSCL scanner hosts - when using the escl backend"`
	Source         string        `arg:"--source,env:SCAN_SOURCE" default:"Platen" help:"eSCL input source (Platen or Feeder)"`
	FolderRoot     string        `arg:"--folder-root,env:SCAN_FOLDER_ROOT" help:"Directory whose sub-directories act as devices - when using the folder backend"`
	Destination    string        `arg:"-d,--destination,env:SCAN_DESTINATION" help:"Initial export folder (default: ~/Documents)"`
	FileSuffix     string        `arg:"--file-suffix,env:SCAN_FILE_SUFFIX" default:"testScan.pdf"`
	JpegQuality    int           `arg:"--jpeg-quality,env:SCAN_JPEG_QUALITY" default:"90" help:"Quality of the page images embedded in the PDF"`
	AcquireTimeout time.Duration `arg:"--acquire-timeout,env:SCAN_ACQUIRE_TIMEOUT" help:"Give up on an acquisition after this long (0 waits forever)"`
	Headless       bool          `arg:"--headless,env:SCAN_HEADLESS" help:"Serve the HTTP API instead of opening a window"`
	ListenAddr     string        `arg:"-L,--listen-addr,env:LISTEN_ADDR" default:"127.0.0.1:8086"`
	LogLevel       string        `arg:"--log-level,env:LOG_LEVEL" default:"info"`

	ArchiveType  string `arg:"--archive-type,env:ARCHIVE_TYPE" default:"none" help:"Where to keep a copy of each export: none, fs or b2"`
	ArchivePath  string `arg:"--archive-path,env:ARCHIVE_PATH" help:"Archive directory - when using the fs archive"`
	B2AccountId  string `arg:"--b2-account-id,env:B2_ACCOUNT" help:"Account for B2 storage - when using the b2 archive"`
	B2AccountKey string `arg:"--b2-account-key,env:B2_KEY" help:"Key for B2 storage - when using the b2 archive"`
	B2BucketName string `arg:"--b2-bucket-name,env:B2_BUCKET_NAME" help:"Bucket Name for B2 storage - when using the b2 archive"`
	B2Passphrase string `arg:"env:B2_PASSPHRASE" help:"Passphrase for B2 storage (optional) - when using the b2 archive"`
}

var log = logrus.StandardLogger()

func main() {
	arg.MustParse(&args)
	if err := cli.FillKeychainValues(&args); err != nil {
		log.Fatalf("fill keychain values: %v", err)
	}
	logutils.SetLoggerLevel(args.LogLevel)

	archive, err := storage.Setup(storage.Config{
		Type:   args.ArchiveType,
		FsPath: args.ArchivePath,
		B2: b2.Config{
			Account:    args.B2AccountId,
			Key:        args.B2AccountKey,
			BucketName: args.B2BucketName,
			Passphrase: args.B2Passphrase,
		},
	})
	if err != nil {
		log.Fatalf("setup archive: %v", err)
	}

	var opts []device.Option
	if args.AcquireTimeout > 0 {
		opts = append(opts, device.WithAcquireTimeout(args.AcquireTimeout))
	}
	manager := device.NewManager(getBackend(), opts...)
	defer manager.Close()

	exporter := export.New(
		export.WithSuffix(args.FileSuffix),
		export.WithDocument(export.NewPDF(export.PDFOptions{
			JPEGQuality: args.JpegQuality,
			Creator:     "odi-scan",
		})),
	)

	config := session.Config{
		Manager:     manager,
		Exporter:    exporter,
		Destination: args.Destination,
		Archive:     archive,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if args.Headless {
		runHeadless(ctx, config, archive)
		return
	}

	w := ui.New(app.NewWithID("ch.denv.odi-scan"), "odi-scan")
	config.Preview = w
	config.Notifier = w
	w.Bind(session.New(config))
	w.ShowAndRun(ctx)
}

func runHeadless(ctx context.Context, config session.Config, archive model.RWStorage) {
	cache := preview.New(preview.DefaultWidth, args.JpegQuality)
	config.Preview = cache
	c := session.New(config)
	if err := c.Open(); err != nil {
		log.Warnf("scanner backend not available yet: %v", err)
	}
	go c.Run(ctx, nil)

	s := backend.New(c, cache, archive)
	log.Infof("listening on %s", args.ListenAddr)
	if err := s.Run(args.ListenAddr); err != nil {
		log.Fatalf("listen: %v", err)
	}
}

func getBackend() device.Backend {
	switch strings.ToLower(args.Backend) {
	case "escl":
		var hosts []string
		for _, h := range strings.Split(args.ScannerNames, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hosts = append(hosts, h)
			}
		}
		return escl.New(escl.Config{Hosts: hosts, Source: args.Source})
	case "folder":
		if args.FolderRoot == "" {
			log.Fatalf("--folder-root is required with the folder backend")
		}
		return folder.New(args.FolderRoot)
	}

	log.Fatalf("unknown backend: %s", args.Backend)
	return nil
}
