package bars

type SlotsQuery struct {
	Date string `form:"date" binding:"required"`
}

type TablesQuery struct {
	TableTypeID string `form:"table_type_id"`
	Date        string `form:"date" binding:"required"`
	Time        string `form:"time" binding:"required"`
}
