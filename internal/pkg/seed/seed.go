package seed

import (
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/carsalesplatform/carsales/app/models"
	"github.com/carsalesplatform/carsales/app/repository"
)

// TrimSeed is one trim of a seeded model
type TrimSeed struct {
	Name  string
	Level string
}

// ModelSeed is one model of a seeded make
type ModelSeed struct {
	Name  string
	Trims []TrimSeed
}

// MakeSeed is one make of the seeded catalogue
type MakeSeed struct {
	Name   string
	Models []ModelSeed
}

// DefaultCatalogue is the dev catalogue
var DefaultCatalogue = []MakeSeed{
	{Name: "Toyota", Models: []ModelSeed{
		{Name: "Corolla", Trims: []TrimSeed{{Name: "1.8 Hybrid", Level: "Luna"}, {Name: "2.0 Hybrid", Level: "Sol"}, {Name: "2.0 Hybrid GR Sport"}}},
		{Name: "Yaris", Trims: []TrimSeed{{Name: "1.5 Hybrid", Level: "Design"}}},
	}},
	{Name: "Volkswagen", Models: []ModelSeed{
		{Name: "Golf", Trims: []TrimSeed{{Name: "1.5 TSI", Level: "Life"}, {Name: "2.0 TDI", Level: "Style"}}},
		{Name: "ID.4", Trims: []TrimSeed{{Name: "Pro", Level: "Max"}}},
	}},
	{Name: "Ford", Models: []ModelSeed{
		{Name: "Focus", Trims: []TrimSeed{{Name: "1.0 EcoBoost", Level: "Titanium"}}},
	}},
}

// Result counts what a seed run resolved
type Result struct {
	Makes  int
	Models int
	Trims  int
}

// Lookups resolves every catalogue entry through get-or-create, so running
// it again creates nothing new.
func Lookups(lookups repository.LookupRepository, catalogue []MakeSeed) (Result, error) {
	var res Result
	for _, ms := range catalogue {
		mk, err := lookups.GetOrCreateMake(ms.Name)
		if err != nil {
			return res, fmt.Errorf("failed to seed make %q: %w", ms.Name, err)
		}
		res.Makes++

		for _, mo := range ms.Models {
			model, err := lookups.GetOrCreateModel(mk.ID, mo.Name)
			if err != nil {
				return res, fmt.Errorf("failed to seed model %q: %w", mo.Name, err)
			}
			res.Models++

			for _, tr := range mo.Trims {
				var level *string
				if tr.Level != "" {
					l := tr.Level
					level = &l
				}
				if _, err := lookups.GetOrCreateTrim(model.ID, tr.Name, level); err != nil {
					return res, fmt.Errorf("failed to seed trim %q: %w", tr.Name, err)
				}
				res.Trims++
			}
		}
	}
	return res, nil
}

// DemoVehicle gives ownerID one published vehicle unless they already own one.
func DemoVehicle(repos *repository.Repositories, ownerID string) (*models.Vehicle, error) {
	owned, err := repos.Vehicle.ListByOwner(ownerID)
	if err != nil {
		return nil, err
	}
	if len(owned) > 0 {
		return &owned[0], nil
	}

	mk, err := repos.Lookup.GetOrCreateMake("Toyota")
	if err != nil {
		return nil, err
	}
	model, err := repos.Lookup.GetOrCreateModel(mk.ID, "Corolla")
	if err != nil {
		return nil, err
	}

	v := &models.Vehicle{
		OwnerID:      ownerID,
		MakeID:       mk.ID,
		ModelID:      model.ID,
		Year:         2021,
		Mileage:      42000,
		MileageUnit:  models.MileageUnitKilometres,
		EngineLiters: 1.8,
		FuelType:     models.FuelTypeHybrid,
		Transmission: models.TransmissionAutomatic,
		BodyType:     models.BodyTypeHatchback,
		Seats:        5,
		Doors:        5,
		Colour:       "Silver",
		TotalOwners:  1,
		Price:        21950,
		IsPublished:  true,
	}
	if err := repos.Vehicle.Create(v); err != nil {
		return nil, fmt.Errorf("failed to create demo vehicle: %w", err)
	}
	return v, nil
}

// Run seeds the default catalogue and a demo vehicle for ownerID.
func Run(repos *repository.Repositories, ownerID string) error {
	res, err := Lookups(repos.Lookup, DefaultCatalogue)
	if err != nil {
		return err
	}
	v, err := DemoVehicle(repos, ownerID)
	if err != nil {
		return err
	}
	log.Infof("[Seed] %d makes, %d models, %d trims; demo vehicle %d for %s", res.Makes, res.Models, res.Trims, v.ID, ownerID)
	return nil
}
