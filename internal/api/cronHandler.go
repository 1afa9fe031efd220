package api

import (
	"net/http"

	"cronchat/internal/tasks"
	"cronchat/internal/types"

	"github.com/rs/zerolog"
)

func StartCronHandler(bot *tasks.BotScheduler, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started, err := bot.Start()
		if err != nil {
			logger.Error().Err(err).Msg("error starting cron job")
			Error(w, http.StatusInternalServerError, "Failed to start cron job")
			return
		}

		msg := "API Cron job started successfully"
		if !started {
			msg = "API Cron job already running"
		}
		JSON(w, http.StatusOK, types.CronResponse{Message: msg, Schedule: bot.Describe()})
	}
}

func StopCronHandler(bot *tasks.BotScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bot.Stop()
		JSON(w, http.StatusOK, types.CronResponse{Message: "API Cron job stopped"})
	}
}

func CronStatusHandler(bot *tasks.BotScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := bot.Status()
		resp := types.CronStatus{Running: st.Running, Schedule: st.Schedule, Ticks: st.Ticks}
		if !st.NextRun.IsZero() {
			resp.NextRun = &st.NextRun
		}
		JSON(w, http.StatusOK, resp)
	}
}
