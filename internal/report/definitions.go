package report

// Definitions returns the built-in report catalogue.
//
// The queries read the operational schema:
//
//	equipment(id, code, name, equipment_type, fleet)
//	materials(id, code, name, density)
//	loads(id, loaded_at, shift_date, shift_code, loader_id, truck_id, material_id,
//	      source_location, destination, bucket_count, tonnage)
//	haul_cycles(id, started_at, shift_date, shift_code, truck_id, loader_id, material_id,
//	            queue_min, load_min, haul_min, dump_min, return_min, distance_km)
//	fuel_logs(id, filled_at, shift_date, shift_code, equipment_id, litres, hour_meter)
//	equipment_events(id, equipment_id, event_type, reason, started_at, shift_date, duration_hours)
//
// Timestamps are filtered on the half-open range [fromDate, toDate+1day);
// shift dates are filtered inclusively.
func Definitions() []ExtractionSpec {
	return []ExtractionSpec{
		materialLoading(),
		shiftProduction(),
		equipmentUtilization(),
		haulCycle(),
		fuelConsumption(),
		equipmentDowntime(),
	}
}

func dateRange() []Param {
	return []Param{
		{Name: ParamFromDate, Kind: KindDate, Required: true},
		{Name: ParamToDate, Kind: KindDate, Required: true},
	}
}

func optional(name string, kind Kind) Param {
	return Param{Name: name, Kind: kind}
}

func materialLoading() ExtractionSpec {
	return ExtractionSpec{
		Type:  MaterialLoading,
		Title: "Material loading by loader, truck and material",
		Params: append(dateRange(),
			optional("materialCode", KindString),
			optional("loaderCode", KindString),
			optional("shiftCode", KindString),
		),
		Columns: []string{
			"shiftDate", "shiftCode", "loaderCode", "truckCode", "materialCode", "materialName",
			"source", "destination", "loadCount", "bucketCount", "tonnage",
		},
		Query: `
SELECT l.shift_date        AS "shiftDate",
       l.shift_code        AS "shiftCode",
       ld.code             AS "loaderCode",
       tr.code             AS "truckCode",
       m.code              AS "materialCode",
       m.name              AS "materialName",
       l.source_location   AS "source",
       l.destination       AS "destination",
       COUNT(*)            AS "loadCount",
       SUM(l.bucket_count) AS "bucketCount",
       SUM(l.tonnage)      AS "tonnage"
FROM loads l
JOIN equipment ld ON ld.id = l.loader_id
JOIN equipment tr ON tr.id = l.truck_id
JOIN materials m  ON m.id = l.material_id
WHERE l.loaded_at >= @fromDate
  AND l.loaded_at <  @toDateExclusive
  AND (@materialCode IS NULL OR m.code = @materialCode)
  AND (@loaderCode IS NULL OR ld.code = @loaderCode)
  AND (@shiftCode IS NULL OR l.shift_code = @shiftCode)
GROUP BY l.shift_date, l.shift_code, ld.code, tr.code, m.code, m.name, l.source_location, l.destination
ORDER BY l.shift_date, l.shift_code, ld.code, tr.code, m.code`,
	}
}

func shiftProduction() ExtractionSpec {
	return ExtractionSpec{
		Type:   ShiftProduction,
		Title:  "Tonnage and volume per shift and material",
		Params: append(dateRange(), optional("shiftCode", KindString)),
		Columns: []string{
			"shiftDate", "shiftCode", "materialCode", "loadCount", "tonnage", "volumeBcm", "truckCount",
		},
		Query: `
SELECT l.shift_date                 AS "shiftDate",
       l.shift_code                 AS "shiftCode",
       m.code                       AS "materialCode",
       COUNT(*)                     AS "loadCount",
       SUM(l.tonnage)               AS "tonnage",
       SUM(l.tonnage) * 1.0 / MAX(m.density) AS "volumeBcm",
       COUNT(DISTINCT l.truck_id)   AS "truckCount"
FROM loads l
JOIN materials m ON m.id = l.material_id
WHERE l.shift_date >= @fromDate
  AND l.shift_date <= @toDate
  AND (@shiftCode IS NULL OR l.shift_code = @shiftCode)
GROUP BY l.shift_date, l.shift_code, m.code
ORDER BY l.shift_date, l.shift_code, m.code`,
	}
}

func equipmentUtilization() ExtractionSpec {
	return ExtractionSpec{
		Type:  EquipmentUtilization,
		Title: "Operating, standby and down hours per unit",
		Params: append(dateRange(),
			optional("equipmentType", KindString),
			optional("equipmentCode", KindString),
		),
		Columns: []string{
			"equipmentCode", "equipmentName", "equipmentType", "operatingHours",
			"standbyHours", "downHours", "totalHours", "utilization", "availability",
		},
		Query: `
SELECT e.code           AS "equipmentCode",
       e.name           AS "equipmentName",
       e.equipment_type AS "equipmentType",
       COALESCE(h.operating, 0) AS "operatingHours",
       COALESCE(h.standby, 0)   AS "standbyHours",
       COALESCE(h.down, 0)      AS "downHours",
       COALESCE(h.total, 0)     AS "totalHours",
       CASE WHEN COALESCE(h.total, 0) - COALESCE(h.down, 0) > 0
            THEN h.operating * 1.0 / (h.total - h.down) END AS "utilization",
       CASE WHEN COALESCE(h.total, 0) > 0
            THEN (h.total - h.down) * 1.0 / h.total END     AS "availability"
FROM equipment e
LEFT JOIN (
    SELECT ev.equipment_id,
           SUM(CASE WHEN ev.event_type = 'OPERATING' THEN ev.duration_hours ELSE 0 END) AS operating,
           SUM(CASE WHEN ev.event_type = 'STANDBY' THEN ev.duration_hours ELSE 0 END)   AS standby,
           SUM(CASE WHEN ev.event_type IN ('BREAKDOWN', 'MAINTENANCE')
                    THEN ev.duration_hours ELSE 0 END)                                   AS down,
           SUM(ev.duration_hours)                                                        AS total
    FROM equipment_events ev
    WHERE ev.started_at >= @fromDate
      AND ev.started_at <  @toDateExclusive
    GROUP BY ev.equipment_id
) h ON h.equipment_id = e.id
WHERE (@equipmentType IS NULL OR e.equipment_type = @equipmentType)
  AND (@equipmentCode IS NULL OR e.code = @equipmentCode)
ORDER BY e.equipment_type, e.code`,
	}
}

func haulCycle() ExtractionSpec {
	return ExtractionSpec{
		Type:  HaulCycle,
		Title: "Average haul cycle components per truck",
		Params: append(dateRange(),
			optional("truckCode", KindString),
			Param{Name: "minCycles", Kind: KindInt, Default: int64(1)},
		),
		Columns: []string{
			"truckCode", "cycleCount", "avgQueueMin", "avgLoadMin", "avgHaulMin",
			"avgDumpMin", "avgReturnMin", "avgCycleMin", "totalDistanceKm",
		},
		Query: `
SELECT tr.code                 AS "truckCode",
       COUNT(*)                AS "cycleCount",
       AVG(c.queue_min)        AS "avgQueueMin",
       AVG(c.load_min)         AS "avgLoadMin",
       AVG(c.haul_min)         AS "avgHaulMin",
       AVG(c.dump_min)         AS "avgDumpMin",
       AVG(c.return_min)       AS "avgReturnMin",
       AVG(c.queue_min + c.load_min + c.haul_min + c.dump_min + c.return_min) AS "avgCycleMin",
       SUM(c.distance_km)      AS "totalDistanceKm"
FROM haul_cycles c
JOIN equipment tr ON tr.id = c.truck_id
WHERE c.started_at >= @fromDate
  AND c.started_at <  @toDateExclusive
  AND (@truckCode IS NULL OR tr.code = @truckCode)
GROUP BY tr.code
HAVING COUNT(*) >= @minCycles
ORDER BY tr.code`,
	}
}

func fuelConsumption() ExtractionSpec {
	return ExtractionSpec{
		Type:  FuelConsumption,
		Title: "Fuel issued and burn rate per unit",
		Params: append(dateRange(),
			optional("equipmentType", KindString),
			optional("equipmentCode", KindString),
		),
		Columns: []string{
			"equipmentCode", "equipmentType", "fills", "litres", "hoursRun", "litresPerHour",
		},
		Query: `
SELECT e.code            AS "equipmentCode",
       e.equipment_type  AS "equipmentType",
       COUNT(f.id)       AS "fills",
       SUM(f.litres)     AS "litres",
       MAX(f.hour_meter) - MIN(f.hour_meter) AS "hoursRun",
       CASE WHEN MAX(f.hour_meter) - MIN(f.hour_meter) > 0
            THEN SUM(f.litres) * 1.0 / (MAX(f.hour_meter) - MIN(f.hour_meter)) END AS "litresPerHour"
FROM fuel_logs f
JOIN equipment e ON e.id = f.equipment_id
WHERE f.filled_at >= @fromDate
  AND f.filled_at <  @toDateExclusive
  AND (@equipmentType IS NULL OR e.equipment_type = @equipmentType)
  AND (@equipmentCode IS NULL OR e.code = @equipmentCode)
GROUP BY e.code, e.equipment_type
ORDER BY e.equipment_type, e.code`,
	}
}

func equipmentDowntime() ExtractionSpec {
	return ExtractionSpec{
		Type:  EquipmentDowntime,
		Title: "Breakdown and maintenance events",
		Params: append(dateRange(),
			optional("equipmentCode", KindString),
			optional("reason", KindString),
		),
		Columns: []string{
			"equipmentCode", "equipmentName", "eventType", "reason", "startedAt", "shiftDate", "durationHours",
		},
		Query: `
SELECT e.code            AS "equipmentCode",
       e.name            AS "equipmentName",
       ev.event_type     AS "eventType",
       ev.reason         AS "reason",
       ev.started_at     AS "startedAt",
       ev.shift_date     AS "shiftDate",
       ev.duration_hours AS "durationHours"
FROM equipment_events ev
JOIN equipment e ON e.id = ev.equipment_id
WHERE ev.event_type IN ('BREAKDOWN', 'MAINTENANCE')
  AND ev.started_at >= @fromDate
  AND ev.started_at <  @toDateExclusive
  AND (@equipmentCode IS NULL OR e.code = @equipmentCode)
  AND (@reason IS NULL OR ev.reason = @reason)
ORDER BY ev.started_at, e.code`,
	}
}
