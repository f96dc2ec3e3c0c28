package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type seedLiquidation struct {
	employeeID, employeeName                                  string
	sueldoBase, gratificacion, asignacionFamiliar, comisiones float64
	afp, salud, cesantia, prestamos                           float64
}

var demoLiquidations = []seedLiquidation{
	{employeeID: "12345678-9", employeeName: "María González", sueldoBase: 2772923, gratificacion: 713366, asignacionFamiliar: 50292, afp: 399034, salud: 242048, cesantia: 20918},
	{employeeID: "9876543-2", employeeName: "Juan Pérez", sueldoBase: 850000, gratificacion: 212500, comisiones: 120000, afp: 118300, salud: 74480, cesantia: 6384, prestamos: 50000},
}

// Seed inserts demo liquidations for the current period of companyID unless
// the company already has data for it. Stored totals are left empty so the
// first auto-fix run fills them through the calculator.
func Seed(ctx context.Context, pool *pgxpool.Pool, companyID string, now time.Time) error {
	year, month := now.Year(), int(now.Month())

	var exists bool
	if err := pool.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM liquidations WHERE company_id = $1 AND period_year = $2 AND period_month = $3)
  `, companyID, year, month).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}

	for _, l := range demoLiquidations {
		if _, err := pool.Exec(ctx, `
      INSERT INTO liquidations (company_id, employee_id, employee_name, period_year, period_month,
        sueldo_base, gratificacion, asignacion_familiar, comisiones, afp, salud, cesantia, prestamos)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
    `, companyID, l.employeeID, l.employeeName, year, month,
			l.sueldoBase, l.gratificacion, l.asignacionFamiliar, l.comisiones, l.afp, l.salud, l.cesantia, l.prestamos); err != nil {
			return err
		}
	}
	return nil
}
