// Package main runs the grasping server: the planning scene, a planner backend, the grasping
// service and its HTTP front-end.
package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/grasping/components/movegroup"
	"go.viam.com/grasping/config"
	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
	// registers all planner backends.
	_ "go.viam.com/grasping/motionplan/register"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/services/grasping"
	"go.viam.com/grasping/services/worldmanager"
	"go.viam.com/grasping/web"
)

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,required,usage=grasping config file"`
	Debug      bool   `flag:"debug,usage=log at debug level"`
}

func main() {
	utils.ContextualMain(mainWithArgs, logging.NewLogger("grasp-server"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg, err := config.Read(argsParsed.ConfigFile)
	if err != nil {
		return err
	}
	closeLog, err := configureLogger(logger, cfg.Log, argsParsed.Debug)
	if err != nil {
		return err
	}
	defer closeLog()

	var source worldmanager.ModelSource
	if cfg.Scene.ModelList != "" {
		source = worldmanager.NewFileSource(cfg.Scene.ModelList)
	}
	scene := worldmanager.New(cfg.SceneManagerConfig(), source, logger.Sublogger("worldmanager"))
	defer func() {
		err = multierr.Combine(err, scene.Close())
	}()
	if source != nil {
		if err := scene.Reload(ctx); err != nil {
			logger.Warnw("cannot load model list", "path", cfg.Scene.ModelList, "error", err)
		}
	}
	if cfg.Scene.WatchModelList {
		if err := scene.WatchModelList(ctx, cfg.Scene.ModelList, worldmanager.DefaultWatchDelay); err != nil {
			return err
		}
	}

	backend, err := motionplan.NewBackend(
		ctx, cfg.Planner.Type, motionplan.Dependencies{Scene: scene}, cfg.Planner.Attributes, logger.Sublogger("planner"),
	)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, backend.Close(context.Background()))
	}()

	// losing the planner shuts the server down like a signal does, and fails the process
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	plannerLost := make(chan error, 1)
	fatal := func(err error) {
		select {
		case plannerLost <- err:
		default:
		}
		stop()
	}

	broadcaster := referenceframe.NewBroadcaster()
	svc, err := grasping.New(cfg.ServiceConfig(), grasping.Dependencies{
		Planner: backend,
		Placer:  backend,
		Arm:     movegroup.NewArm(cfg.Manipulator.ArmGroup, backend, logger),
		Gripper: movegroup.NewGripper(
			cfg.Manipulator.GripperGroup, cfg.NamedTargets.Open, cfg.NamedTargets.Closed, backend, logger,
		),
		Broadcaster: broadcaster,
		Fatal:       fatal,
	}, logger.Sublogger("grasping"))
	if err != nil {
		return err
	}

	server := web.New(svc, scene, broadcaster, logger.Sublogger("web"))
	if err := server.Start(web.Options{
		BindAddress: cfg.Network.BindAddress,
		TLSCertFile: cfg.Network.TLSCertFile,
		TLSKeyFile:  cfg.Network.TLSKeyFile,
	}); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")

	grace := time.Duration(cfg.ShutdownGraceSec * float64(time.Second))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	err = multierr.Combine(
		server.Stop(shutdownCtx),
		svc.Shutdown(shutdownCtx, grace),
	)
	select {
	case lost := <-plannerLost:
		return multierr.Combine(errors.Wrap(lost, "lost the planner"), err)
	default:
		return err
	}
}

// configureLogger applies the log section of the config, returning a func closing the log file.
func configureLogger(logger logging.Logger, conf config.LogConfig, debug bool) (func(), error) {
	level, err := logging.LevelFromString(conf.Level)
	if err != nil {
		return nil, err
	}
	if debug {
		level = logging.DEBUG
	}
	logger.SetLevel(level)

	if conf.File == "" {
		return func() {}, nil
	}
	appender := logging.NewFileAppender(conf.File, conf.MaxSizeMB, conf.MaxBackups)
	logger.AddAppender(appender)
	logger.Infow("logging to file", "path", conf.File)
	return func() {
		utils.UncheckedError(appender.Close())
	}, nil
}
