package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const liquidationColumns = `
    id, company_id, employee_id, employee_name, period_year, period_month,
    sueldo_base, horas_extras, gratificacion, bonos, comisiones,
    asignacion_familiar, colacion, movilizacion, otros_haberes,
    afp, comision_afp, salud, cesantia, impuesto_unico,
    prestamos, anticipos, apv, otros_descuentos,
    total_haberes, total_descuentos, liquido_pagar, updated_at`

func scanLiquidation(row pgx.Row) (LiquidationRow, error) {
	var l LiquidationRow
	err := row.Scan(
		&l.ID, &l.CompanyID, &l.EmployeeID, &l.EmployeeName, &l.PeriodYear, &l.PeriodMonth,
		&l.SueldoBase, &l.HorasExtras, &l.Gratificacion, &l.Bonos, &l.Comisiones,
		&l.AsignacionFamiliar, &l.Colacion, &l.Movilizacion, &l.OtrosHaberes,
		&l.AFP, &l.ComisionAFP, &l.Salud, &l.Cesantia, &l.ImpuestoUnico,
		&l.Prestamos, &l.Anticipos, &l.APV, &l.OtrosDescuentos,
		&l.TotalHaberes, &l.TotalDescuentos, &l.LiquidoPagar, &l.UpdatedAt,
	)
	return l, err
}

func (s *Store) ListLiquidations(ctx context.Context, companyID string, year, month int) ([]LiquidationRow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+liquidationColumns+`
    FROM liquidations
    WHERE company_id = $1 AND period_year = $2 AND period_month = $3
    ORDER BY employee_name, employee_id
  `, companyID, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LiquidationRow
	for rows.Next() {
		row, err := scanLiquidation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) GetLiquidation(ctx context.Context, companyID, liquidationID string) (LiquidationRow, error) {
	row, err := scanLiquidation(s.DB.QueryRow(ctx, `
    SELECT`+liquidationColumns+`
    FROM liquidations
    WHERE company_id = $1 AND id = $2
  `, companyID, liquidationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return LiquidationRow{}, ErrLiquidationNotFound
	}
	if err != nil {
		return LiquidationRow{}, err
	}
	return row, nil
}

func (s *Store) HasLiquidations(ctx context.Context, companyID string, year, month int) (bool, error) {
	var exists bool
	if err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM liquidations
      WHERE company_id = $1 AND period_year = $2 AND period_month = $3
    )
  `, companyID, year, month).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) ListPeriodCompanies(ctx context.Context, year, month int) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT DISTINCT company_id
    FROM liquidations
    WHERE period_year = $1 AND period_month = $2
    ORDER BY company_id
  `, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CachedTotals(ctx context.Context, companyID string, year, month int) (CachedTotals, error) {
	totals := CachedTotals{CompanyID: companyID, Year: year, Month: month}
	err := s.DB.QueryRow(ctx, `
    SELECT total_earnings, total_deductions, total_net_pay, liquidation_count, updated_at
    FROM payroll_period_totals
    WHERE company_id = $1 AND period_year = $2 AND period_month = $3
  `, companyID, year, month).Scan(&totals.TotalEarnings, &totals.TotalDeductions, &totals.TotalNetPay, &totals.LiquidationCount, &totals.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CachedTotals{}, ErrCachedTotalsNotFound
	}
	if err != nil {
		return CachedTotals{}, err
	}
	return totals, nil
}

const upsertPeriodTotals = `
INSERT INTO payroll_period_totals (company_id, period_year, period_month, total_earnings, total_deductions, total_net_pay, liquidation_count, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (company_id, period_year, period_month)
DO UPDATE SET total_earnings = EXCLUDED.total_earnings,
              total_deductions = EXCLUDED.total_deductions,
              total_net_pay = EXCLUDED.total_net_pay,
              liquidation_count = EXCLUDED.liquidation_count,
              updated_at = now()`

// ApplyCorrections overwrites the stored totals of the given liquidations
// and the cached period totals in one transaction. It returns the number of
// liquidation rows touched.
func (s *Store) ApplyCorrections(ctx context.Context, companyID string, updates []TotalsUpdate, cached CachedTotals) (int, error) {
	updated := 0
	err := pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		for _, update := range updates {
			tag, err := tx.Exec(ctx, `
        UPDATE liquidations
        SET total_haberes = $1, total_descuentos = $2, liquido_pagar = $3, updated_at = now()
        WHERE company_id = $4 AND id = $5
      `, update.Totals.TotalEarnings, update.Totals.TotalDeductions, update.Totals.NetPay, companyID, update.LiquidationID)
			if err != nil {
				return fmt.Errorf("update liquidation %s: %w", update.LiquidationID, err)
			}
			updated += int(tag.RowsAffected())
		}
		if _, err := tx.Exec(ctx, upsertPeriodTotals, cached.CompanyID, cached.Year, cached.Month,
			cached.TotalEarnings, cached.TotalDeductions, cached.TotalNetPay, cached.LiquidationCount); err != nil {
			return fmt.Errorf("save cached totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}
