package controllers

import (
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/carsalesplatform/carsales/app/repository"
)

// LookupController serves the make/model/trim pick lists
type LookupController struct {
	lookups repository.LookupRepository
}

func NewLookupController(lookups repository.LookupRepository) *LookupController {
	return &LookupController{lookups: lookups}
}

func (lc *LookupController) HandleListMakes(c *fiber.Ctx) error {
	makes, err := lc.lookups.ListMakes()
	if err != nil {
		fiberlog.Errorf("[Lookup] Listing makes failed: %v", err)
		return respondInternal(c)
	}
	return c.JSON(fiber.Map{"makes": makes})
}

func (lc *LookupController) HandleListModels(c *fiber.Ctx) error {
	makeID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}
	models, err := lc.lookups.ListModels(makeID)
	if err != nil {
		fiberlog.Errorf("[Lookup] Listing models of make %d failed: %v", makeID, err)
		return respondInternal(c)
	}
	return c.JSON(fiber.Map{"make_id": makeID, "models": models})
}

func (lc *LookupController) HandleListTrims(c *fiber.Ctx) error {
	modelID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}
	trims, err := lc.lookups.ListTrims(modelID)
	if err != nil {
		fiberlog.Errorf("[Lookup] Listing trims of model %d failed: %v", modelID, err)
		return respondInternal(c)
	}
	return c.JSON(fiber.Map{"model_id": modelID, "trims": trims})
}
