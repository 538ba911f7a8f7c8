package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/reconciler"
	"github.com/yeremiapane/restaurant-floor/utils"
)

type FloorController struct {
	Floor *reconciler.Reconciler
}

func NewFloorController(floor *reconciler.Reconciler) *FloorController {
	return &FloorController{Floor: floor}
}

// GetFloor returns the grouped floor. The first read, or ?refresh=true,
// loads it from the backend.
func (fc *FloorController) GetFloor(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.Query("refresh"))
	if refresh || len(fc.Floor.Tables()) == 0 {
		if err := fc.Floor.Refresh(c.Request.Context()); err != nil {
			respondFailure(c, err)
			return
		}
	}
	utils.RespondJSON(c, http.StatusOK, "Floor", fc.Floor.Floor())
}

func (fc *FloorController) GetPending(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Pending reservations", fc.Floor.Pending())
}

// UpdateTable edits capacity, status and area of one table. Status may be
// given as a display value or a raw one.
func (fc *FloorController) UpdateTable(c *gin.Context) {
	tableID := c.Param("table_id")
	var body struct {
		Capacity  *int    `json:"capacity"`
		Status    *string `json:"status"`
		AreaID    *string `json:"areaId"`
		ClearArea bool    `json:"clearArea"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	edit := models.TableEdit{Capacity: body.Capacity, AreaID: body.AreaID, ClearArea: body.ClearArea}
	if body.Status != nil {
		status := models.TableStatus(*body.Status)
		edit.Status = &status
	}
	if edit.Empty() {
		utils.RespondMessage(c, http.StatusBadRequest, "Nothing to update")
		return
	}

	table, err := fc.Floor.EditTable(c.Request.Context(), tableID, edit)
	if err != nil {
		respondFailure(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table updated", reconciler.TableView{
		Table:   table,
		Display: reconciler.NormalizeStatus(table.Status),
	})
}

func (fc *FloorController) GetTableReservations(c *gin.Context) {
	list, err := fc.Floor.TableReservations(c.Request.Context(), c.Param("table_id"))
	if err != nil {
		respondFailure(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table reservations", list)
}

// GetAreaImpact tells the operator how many tables an area deletion moves.
func (fc *FloorController) GetAreaImpact(c *gin.Context) {
	areaID := c.Param("area_id")
	n, err := fc.Floor.AreaDeletionImpact(c.Request.Context(), areaID)
	if err != nil {
		respondFailure(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Area deletion impact", gin.H{
		"areaId": areaID,
		"tables": n,
	})
}

// DeleteArea needs ?confirm=true when the area still has tables.
func (fc *FloorController) DeleteArea(c *gin.Context) {
	areaID := c.Param("area_id")
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))

	n, err := fc.Floor.DeleteArea(c.Request.Context(), areaID, confirmed)
	if errors.Is(err, reconciler.ErrConfirmationRequired) {
		c.JSON(http.StatusConflict, utils.JSONResponse{
			Status:  false,
			Message: "This area has " + strconv.Itoa(n) + " tables. They will be moved to Unassigned. Confirm to continue.",
			Data:    gin.H{"areaId": areaID, "tables": n},
		})
		return
	}
	if err != nil {
		respondFailure(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Area deleted", gin.H{"areaId": areaID, "unassignedTables": n})
}

func (fc *FloorController) AssignReservation(c *gin.Context) {
	var body struct {
		TableID string `json:"tableId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := fc.Floor.AssignReservation(c.Request.Context(), c.Param("reservation_id"), body.TableID)
	if err != nil {
		respondFailure(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation assigned", res)
}
