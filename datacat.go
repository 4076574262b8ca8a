package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	scsmemstore "github.com/alexedwards/scs/v2/memstore"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/wansing/datacat/backend"
	"github.com/wansing/datacat/core"
	"github.com/wansing/datacat/memstore"
	"github.com/wansing/datacat/sqldb"
	"github.com/wansing/datacat/util"
	"github.com/xo/dburl"
	"golang.org/x/term"
)

const defaultDB = "sqlite3:datacat.sqlite3?_busy_timeout=10000&_journal_mode=WAL&_sync=NORMAL&_txlock=immediate"

// cliActor is used by the init subcommand, so it passes the authorization checks.
var cliActor = &core.User{Name: "init", Sysadmin: true}

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true, // on most systems systemd-journald adds them
	})
}

// config holds the values which can be given as flags or in the [server] section of the config file.
type config struct {
	listen          string
	db              string
	base            string
	logLevel        string
	sessionLifetime string
}

func (cfg *config) register(fs *flag.FlagSet, serve bool) {
	fs.StringVar(&cfg.db, "db", defaultDB, "sql database url, see github.com/xo/dburl, or \"mem:\" for a volatile in-memory database")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "logrus log `level`")
	if serve {
		// Your reverse proxy must not strip the prefix. So if you're using nginx, the "proxy_pass" value should not end with a slash.
		fs.StringVar(&cfg.base, "base", "", "strip off this `prefix` from every HTTP request and prepend it to every redirect")
		fs.StringVar(&cfg.listen, "listen", "127.0.0.1:8080", "serve HTTP content at this `ip:port`")
		fs.StringVar(&cfg.sessionLifetime, "session-lifetime", "720h", "maximum session `duration`")
	}
}

// applyIni sets the values from the ini file which have not been set by flags.
func (cfg *config) applyIni(fs *flag.FlagSet, filename string) error {

	values, err := util.Ini(filename, "server")
	if err != nil {
		return err
	}

	var set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	for key, target := range map[string]*string{
		"listen":           &cfg.listen,
		"db":               &cfg.db,
		"base":             &cfg.base,
		"log_level":        &cfg.logLevel,
		"session_lifetime": &cfg.sessionLifetime,
	} {
		var flagName = strings.ReplaceAll(key, "_", "-")
		if value, ok := values[key]; ok && !set[flagName] && fs.Lookup(flagName) != nil {
			*target = value
		}
	}
	return nil
}

func main() {

	var cfg = &config{}
	var configFile string

	// default FlagSet

	cfg.register(flag.CommandLine, true)
	flag.StringVar(&configFile, "config", "", "read defaults from the [server] section of this ini `file`")

	// init FlagSet

	var initFlags = flag.NewFlagSet("init", flag.ExitOnError)
	cfg.register(initFlags, false)
	initFlags.StringVar(&configFile, "config", "", "read defaults from the [server] section of this ini `file`")
	var initInsert = initFlags.Bool("insert", false, "creates the given user, or the given group or package owned by the given user")
	var initGrant = initFlags.Bool("grant", false, "grants the given role on the given group to the given user")
	var initMakeSysadmin = initFlags.Bool("make-sysadmin", false, "gives sysadmin permissions to the given user")
	var groupname = initFlags.String("group", "", "specifies a group `name`")
	var packagename = initFlags.String("package", "", "specifies a package `name`")
	var username = initFlags.String("user", "", "specifies a user `name`")
	var rolename = initFlags.String("role", "editor", "specifies a `role`: reader, editor or admin")
	var title = initFlags.String("title", "", "title of the new group or package")

	var fs = flag.CommandLine
	if len(os.Args) > 1 && os.Args[1] == "init" {
		initFlags.Parse(os.Args[2:])
		fs = initFlags
	} else {
		flag.Parse()
	}

	if configFile != "" {
		if err := cfg.applyIni(fs, configFile); err != nil {
			logrus.Errorf("could not read config file: %v", err)
			return
		}
	}

	level, err := logrus.ParseLevel(cfg.logLevel)
	if err != nil {
		logrus.Errorf("could not parse log level: %v", err)
		return
	}
	logrus.SetLevel(level)

	// database

	catalog, sessionStore, closeDB, err := openDB(cfg.db)
	if err != nil {
		logrus.Errorf("could not open database: %v", err)
		return
	}
	defer func() {
		logrus.Info("closing database")
		closeDB()
	}()

	if err := catalog.Init(); err != nil {
		logrus.Error(err) // logrus.Fatal would not run deferred functions
		return
	}

	// init

	if initFlags.Parsed() {
		switch {
		case *initInsert && *groupname != "":
			insertGroup(catalog, *groupname, *title, *username)
		case *initInsert && *packagename != "":
			insertPackage(catalog, *packagename, *title, *username)
		case *initInsert && *username != "":
			insertUser(catalog, *username)
		case *initGrant:
			grant(catalog, *groupname, *username, *rolename)
		case *initMakeSysadmin:
			makeSysadmin(catalog, *username)
		default:
			initFlags.Usage()
		}
		return
	}

	// base

	var base = strings.Trim(cfg.base, "/")
	if base != "" {
		base = "/" + base
	}

	lifetime, err := time.ParseDuration(cfg.sessionLifetime)
	if err != nil {
		logrus.Errorf("could not parse session lifetime: %v", err)
		return
	}

	listen(&backend.Backend{
		DB:       catalog,
		Sessions: backend.NewSessions(sessionStore, base, lifetime),
		Prefix:   base,
	}, cfg.listen)
}

// openDB returns the catalog and a session store. If dbArg is "mem:", both are volatile.
func openDB(dbArg string) (*core.CatalogDB, scs.Store, func(), error) {

	if dbArg == "mem:" {
		store, err := memstore.New()
		if err != nil {
			return nil, nil, nil, err
		}
		logrus.Warn("using volatile in-memory database")
		return store.Catalog(), scsmemstore.New(), func() {}, nil
	}

	dbURL, err := dburl.Parse(dbArg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parsing database url: %w", err)
	}

	if dbURL.Driver != "sqlite3" {
		return nil, nil, nil, fmt.Errorf("unsupported database driver: %s", dbURL.Driver)
	}

	var sqlDB *sqlx.DB
	sqlDB, err = sqldb.Open(dbURL.DSN)
	if err != nil {
		return nil, nil, nil, err
	}

	logrus.Infof("using database %s", dbURL.String())

	return sqldb.Catalog(sqlDB), sqldb.NewSessionStore(sqlDB), func() { sqlDB.Close() }, nil
}

func getUser(catalog *core.CatalogDB, name string) (*core.User, error) {
	if name == "" {
		return nil, errors.New("no user given")
	}
	return catalog.GetUserByName(core.NormalizeName(name))
}

func insertGroup(catalog *core.CatalogDB, name, title, owner string) {

	u, err := getUser(catalog, owner)
	if err != nil {
		logrus.Errorf("error getting owner of group %s: %v", name, err)
		return
	}

	g, err := catalog.CreateGroup(u, core.Attrs{"name": name, "title": title}, nil)
	if err != nil {
		logrus.Errorf(`error creating group "%s": %v`, name, err)
		return
	}

	logrus.WithField("id", g.ID).Infof("created group %s", g.Name)
}

func insertPackage(catalog *core.CatalogDB, name, title, owner string) {

	u, err := getUser(catalog, owner)
	if err != nil {
		logrus.Errorf("error getting owner of package %s: %v", name, err)
		return
	}

	p, err := catalog.CreatePackage(u, core.Attrs{"name": name, "title": title})
	if err != nil {
		logrus.Errorf(`error creating package "%s": %v`, name, err)
		return
	}

	logrus.WithField("id", p.ID).Infof("created package %s", p.Name)
}

func insertUser(catalog *core.CatalogDB, name string) {

	fmt.Printf("password for user %s: ", name)
	pass1, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		logrus.Errorf("error reading password: %v", err)
		return
	}

	fmt.Printf("repeat password: ")
	pass2, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		logrus.Errorf("error reading password: %v", err)
		return
	}

	if !bytes.Equal(pass1, pass2) {
		logrus.Error("passwords don't match")
		return
	}

	user, err := catalog.InsertUser(name)
	if err != nil {
		logrus.Errorf("error creating user %s: %v", name, err)
		return
	}

	if err := catalog.SetPassword(user, string(pass1)); err != nil {
		logrus.Errorf("error setting password: %v", err)
		return
	}

	logrus.Infof("created user %s", user.Name)
}

func grant(catalog *core.CatalogDB, groupname, username, rolename string) {

	role, err := core.ParseRole(rolename)
	if err != nil {
		logrus.Error(err)
		return
	}

	u, err := getUser(catalog, username)
	if err != nil {
		logrus.Errorf("error getting user %s: %v", username, err)
		return
	}

	var g = &core.RoleGrant{
		UserID:     u.ID,
		ObjectType: core.GroupObject,
		ObjectID:   groupname,
		Role:       role,
	}

	if err := catalog.AddRole(cliActor, g); err != nil {
		logrus.Errorf("error granting role: %v", err)
		return
	}

	logrus.Info(g)
}

func makeSysadmin(catalog *core.CatalogDB, username string) {

	u, err := getUser(catalog, username)
	if err != nil {
		logrus.Errorf("error getting user %s: %v", username, err)
		return
	}

	if err := catalog.SetSysadmin(u, true); err != nil {
		logrus.Errorf("error giving sysadmin permissions to %s: %v", u.Name, err)
		return
	}
}

func listen(b *backend.Backend, addr string) {

	// golang mux recovers from panics, so the program won't crash
	var mux = http.NewServeMux()
	util.HandlePrefix(mux, b.Prefix, b.NewRouter())

	// listener and listen

	sigintChannel := make(chan os.Signal, 1)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logrus.Error(err)
		return
	}

	logrus.Infof("listening to %s", addr)

	httpSrv := &http.Server{
		Handler:      backend.LogRequests(b.Sessions.LoadAndSave(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil {

			// don't panic, we want a graceful shutdown
			if err != http.ErrServerClosed {
				logrus.Errorf("error listening: %v", err)
			}

			// ensure graceful shutdown
			sigintChannel <- os.Interrupt
		}
	}()

	// graceful shutdown

	signal.Notify(sigintChannel, os.Interrupt, syscall.SIGTERM) // SIGINT (Interrupt) or SIGTERM
	<-sigintChannel

	logrus.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logrus.Errorf("error shutting down: %v", err)
	}
}
