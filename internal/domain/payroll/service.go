package payroll

import (
	"context"
	"fmt"
)

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) Store() StoreAPI {
	return s.store
}

func (s *Service) Liquidations(ctx context.Context, companyID string, year, month int) ([]Liquidation, error) {
	rows, err := s.store.ListLiquidations(ctx, companyID, year, month)
	if err != nil {
		return nil, fmt.Errorf("list liquidations: %w", err)
	}
	out := make([]Liquidation, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToLiquidation(row))
	}
	return out, nil
}

func (s *Service) Liquidation(ctx context.Context, companyID, liquidationID string) (Liquidation, error) {
	row, err := s.store.GetLiquidation(ctx, companyID, liquidationID)
	if err != nil {
		return Liquidation{}, err
	}
	return ToLiquidation(row), nil
}

func (s *Service) ValidateExternal(ctx context.Context, companyID, liquidationID string, external Totals, tolerance float64) (ExternalValidation, error) {
	row, err := s.store.GetLiquidation(ctx, companyID, liquidationID)
	if err != nil {
		return ExternalValidation{}, err
	}
	return ValidateAgainstExternal(FromLiquidationRow(row), external, tolerance), nil
}
