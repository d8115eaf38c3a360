package dig_container

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/neighborguard/apps/api/echo"
	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/compliance"
	"github.com/trezcool/neighborguard/core/notification"
	"github.com/trezcool/neighborguard/core/patrol"
	"github.com/trezcool/neighborguard/core/user"
	emailsvc "github.com/trezcool/neighborguard/services/email"
	logsvc "github.com/trezcool/neighborguard/services/logger"
	smssvc "github.com/trezcool/neighborguard/services/sms"
	"github.com/trezcool/neighborguard/storage/database"
	inmemdb "github.com/trezcool/neighborguard/storage/database/inmem"
	sqlxrepos "github.com/trezcool/neighborguard/storage/database/sqlx"
	redisstore "github.com/trezcool/neighborguard/storage/redis"
)

const (
	EngineMemory   = "memory"
	EnginePostgres = "postgres"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBCloser closes the database, if any.
	DBCloser func() error

	Repositories struct {
		dig.Out
		Users  user.Repository
		Scans  patrol.Repository
		Closer DBCloser
	}

	Metrics struct {
		dig.Out
		Registerer prometheus.Registerer
		Gatherer   prometheus.Gatherer
	}

	ServerParams struct {
		dig.In
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Clock      core.Clock
		Gatherer   prometheus.Gatherer
		UserSvc    user.Service
		PatrolSvc  patrol.Service
		Engine     *compliance.Engine
	}
)

func newZapLogger(conf *core.Config) (*zap.Logger, error) {
	return logsvc.NewZapLogger(conf)
}

func newLogger(z *zap.Logger, conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(z.Named("api"), conf)
}

func newDBLogger(z *zap.Logger, conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(z.Named("db"), conf)
}

func newClock() core.Clock { return core.SystemClock }

func newMetrics() Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return Metrics{Registerer: reg, Gatherer: reg}
}

func newPostgres(conf *core.Config) (*sqlx.DB, error) {
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(ctx, db, 5); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// newRepositories picks the storage from `database.engine`.
func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	logger := loggerParam.Logger

	switch conf.Database.Engine {
	case EngineMemory:
		db, err := inmemdb.Open()
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up in-memory database: %v", err), err)
		}
		logger.Warn("using the in-memory database: data is lost on exit")
		return Repositories{
			Users:  inmemdb.NewUserRepository(db),
			Scans:  inmemdb.NewScanRepository(db),
			Closer: func() error { return nil },
		}
	case EnginePostgres, "":
		db, err := newPostgres(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		return Repositories{
			Users:  sqlxrepos.NewUserRepository(db),
			Scans:  sqlxrepos.NewScanRepository(db),
			Closer: db.Close,
		}
	default:
		logger.Fatal(fmt.Sprintf("unknown database engine %q", conf.Database.Engine))
		return Repositories{}
	}
}

func newEmailService(conf *core.Config) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf)
}

func newSMSService(conf *core.Config) core.SMSService {
	if conf.Debug || conf.SMS.GatewayURL == "" {
		return smssvc.NewConsoleService(conf)
	}
	return smssvc.NewGatewayService(conf)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newPatrolService(scans patrol.Repository, users user.Repository, clock core.Clock) patrol.Service {
	return patrol.NewService(scans, users, clock)
}

func newEngine(
	conf *core.Config,
	users user.Repository,
	scans patrol.Repository,
	sender notification.Sender,
	clock core.Clock,
	logger core.Logger,
	reg prometheus.Registerer,
) (*compliance.Engine, error) {
	th := compliance.ThresholdsFromConfig(conf.Compliance)
	policy, err := compliance.PolicyByName(conf.Compliance.SweepPolicy, th.DefaultTargetScans)
	if err != nil {
		return nil, err
	}
	return compliance.NewEngine(compliance.Options{
		Users:       users,
		Scans:       scans,
		Sender:      sender,
		Clock:       clock,
		Logger:      logger,
		Thresholds:  th,
		SweepPolicy: policy,
		AdminEmail:  conf.Compliance.AdminEmail,
		Registerer:  reg,
	}), nil
}

// newLocker serializes sweeps through Redis when configured, in-process otherwise.
func newLocker(conf *core.Config, clock core.Clock, logger core.Logger) core.Locker {
	if conf.Redis.Addr == "" {
		return core.NewLocalLocker(clock)
	}
	logger.Info(fmt.Sprintf("using redis sweep lock at %s", conf.Redis.Addr))
	return redisstore.NewLocker(redisstore.NewClient(conf.Redis))
}

func newScheduler(conf *core.Config, engine *compliance.Engine, locker core.Locker, logger core.Logger) *compliance.Scheduler {
	return compliance.NewScheduler(engine, locker, logger, conf.Compliance.SweepInterval, conf.Compliance.SweepLockTTL)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.Options{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		Clock:      p.Clock,
		Gatherer:   p.Gatherer,
		UserSvc:    p.UserSvc,
		PatrolSvc:  p.PatrolSvc,
		Engine:     p.Engine,
	})
}

// New returns a new dependency injection dig.Container.
// `conf` replaces core.NewConfig when given.
func New(conf ...*core.Config) *dig.Container {
	c := dig.New()

	if len(conf) > 0 {
		must(c.Provide(func() *core.Config { return conf[0] }))
	} else {
		must(c.Provide(core.NewConfig))
	}
	must(c.Provide(newZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newClock))
	must(c.Provide(newMetrics))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newSMSService))
	must(c.Provide(notification.NewSender))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(newPatrolService))
	must(c.Provide(newEngine))
	must(c.Provide(newLocker))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
