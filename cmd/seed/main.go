package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling-core/internal/app"
	"github.com/hackgods/clinic-scheduling-core/internal/clinic"
	"github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/internal/logging"
	"github.com/hackgods/clinic-scheduling-core/internal/schedule"
)

func main() {
	var (
		patients int
		date     string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the clinic store with fake patients and a day of appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}
			log := logging.New(cfg.Env, cfg.LogLevel, "seed")

			day, err := time.ParseInLocation(schedule.DateFormat, date, cfg.Location)
			if err != nil {
				return fmt.Errorf("parse --date: %w", err)
			}

			ctx := cmd.Context()
			rt, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			return seed(ctx, rt.Service, cfg.BusinessHours, day, patients, log)
		},
	}

	cmd.Flags().IntVar(&patients, "patients", 40, "number of patients to register")
	cmd.Flags().StringVar(&date, "date", time.Now().Format(schedule.DateFormat), "day to fill, YYYY-MM-DD")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var statuses = []string{"validated", "validated", "cancelled", "postponed", "no_show", "pending"}

func seed(ctx context.Context, svc *clinic.Service, hours schedule.BusinessHours, day time.Time, count int, log zerolog.Logger) error {
	faker := gofakeit.New(0)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		p, err := svc.RegisterPatient(ctx, faker.Name())
		if err != nil {
			return fmt.Errorf("register patient: %w", err)
		}
		ids = append(ids, p.ID)
	}
	log.Info().Int("patients", len(ids)).Msg("patients seeded")

	if _, err := svc.CreateAppointment(ctx, clinic.NewAppointment{
		Kind:            schedule.KindLunchBreak,
		Start:           day.Add(13 * time.Hour),
		DurationMinutes: 60,
	}); err != nil {
		return fmt.Errorf("create lunch break: %w", err)
	}

	cursor := day.Add(hours.Open)
	closing := day.Add(hours.Close)
	created := 0

	for _, id := range ids {
		minutes := []int{15, 30, 30, 45}[faker.Number(0, 3)]
		cursor = cursor.Add(time.Duration(faker.Number(0, 2)*15) * time.Minute)
		if cursor.Add(time.Duration(minutes) * time.Minute).After(closing) {
			break
		}

		patientID := id
		appt, err := svc.CreateAppointment(ctx, clinic.NewAppointment{
			Kind:            schedule.KindVisit,
			PatientID:       &patientID,
			Start:           cursor,
			DurationMinutes: minutes,
			Note:            "seeded: " + faker.Word(),
		})
		if err != nil {
			return fmt.Errorf("create appointment at %s: %w", cursor.Format("15:04"), err)
		}
		cursor = appt.End()
		created++

		status := statuses[faker.Number(0, len(statuses)-1)]
		if status == "pending" {
			continue
		}
		if _, err := svc.ChangeAppointmentStatus(ctx, appt.ID, status); err != nil && !errors.Is(err, schedule.ErrInvalidStatusTransition) {
			return fmt.Errorf("set status %s: %w", status, err)
		}
	}

	log.Info().
		Int("appointments", created).
		Str("date", day.Format(schedule.DateFormat)).
		Msg("seed complete")
	return nil
}
