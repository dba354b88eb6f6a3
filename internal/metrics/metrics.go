// Package metrics объявляет счётчики Prometheus для ключевых событий
// бизнес-логики. Сами метрики отдаются на /metrics через promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts — попытки входа по результату: success, failure, locked.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academy_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	// AccountLockouts — сработавшие блокировки входа.
	AccountLockouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "academy_account_lockouts_total",
		Help: "Accounts locked after repeated failed logins.",
	})

	// SubscriptionActivations — активации подписок по тарифному плану.
	SubscriptionActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academy_subscription_activations_total",
		Help: "Subscription activations by plan.",
	}, []string{"plan"})

	// SubscriptionsExpired — подписки, переведённые в expired при очередной проверке.
	SubscriptionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "academy_subscriptions_expired_total",
		Help: "Subscriptions moved to expired by the sweep.",
	})
)
