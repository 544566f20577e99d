// Package app wires the intake flow onto the Telegram runtime: commands,
// menus, callback routing and the outbound sender.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/intakebot/bot/flow"
	"github.com/m3rciful/intakebot/bot/orders"
	"github.com/m3rciful/intakebot/bot/session"
	coreconfig "github.com/m3rciful/intakebot/core/config"
	tg "github.com/m3rciful/intakebot/core/telegram"
	"github.com/m3rciful/intakebot/core/telegram/router"
)

// App aggregates the bot's domain components.
type App struct {
	cfg    *coreconfig.Config
	store  orders.Store
	flow   *flow.Router
	outbox *teleOutbox
}

// New builds the application from config. db may be nil unless the postgres
// order backend is configured.
func New(cfg *coreconfig.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	var store orders.Store
	switch cfg.Orders.Backend {
	case coreconfig.OrdersBackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("app: postgres backend requires a database handle")
		}
		store = orders.NewPGStore(db)
	case coreconfig.OrdersBackendFile:
		store = orders.NewFileStore(cfg.Orders.File)
	default:
		return nil, fmt.Errorf("app: unknown orders backend %q", cfg.Orders.Backend)
	}

	outbox := &teleOutbox{}
	fl := flow.NewRouter(flow.Options{
		Sessions: session.NewMemoryStore(),
		Orders:   store,
		Outbox:   outbox,
		AdminID:  cfg.Telegram.AdminID,
	})

	return &App{
		cfg:    cfg,
		store:  store,
		flow:   fl,
		outbox: outbox,
	}, nil
}

// TelegramRunOptions assembles everything core/telegram.RunTelegram needs.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.registerHandlers(reg); err != nil {
		return tg.RunOptions{}, err
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(&conversationBridge{flow: a.flow}, reg, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))

	opts := tg.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			a.outbox.Bind(rt.Bot, rt.Dispatcher)
			return nil
		},
	}
	return opts, nil
}
