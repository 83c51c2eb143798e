package memoria

// TablaFisica identifica una página de la propia estructura de la tabla
type TablaFisica struct {
	PA    uint64
	Nivel int    // Nivel de las entradas que contiene (0 = hojas)
	VA    uint64 // Primera dirección virtual que cubre
}

// IteradorTablas recorre las páginas de tablas intermedias y hoja de un
// espacio (no la raíz), de las más profundas hacia arriba, de modo que
// liberar la actual nunca invalida a las siguientes.
type IteradorTablas struct {
	tablas []TablaFisica
	pos    int
}

// IteradorTablas arma el recorrido de las tablas del espacio
func (e *EspacioDirecciones) IteradorTablas() *IteradorTablas {
	it := &IteradorTablas{}
	e.recolectarTablas(e.raiz, Niveles-1, 0, &it.tablas)
	return it
}

func (e *EspacioDirecciones) recolectarTablas(tabla uint64, nivel int, base uint64, salida *[]TablaFisica) {
	if nivel == 0 {
		return
	}
	l := e.mem.layout
	for i := uint64(0); i < l.EntradasPorTabla(); i++ {
		ent := e.mem.leerEntrada(tabla + i*8)
		if !ent.permiso().Presente() {
			continue
		}
		hija := ent.direccion(l)
		va := base + i*l.alcance(nivel)
		e.recolectarTablas(hija, nivel-1, va, salida)
		*salida = append(*salida, TablaFisica{PA: hija, Nivel: nivel - 1, VA: va})
	}
}

// Activo indica si quedan tablas por visitar
func (it *IteradorTablas) Activo() bool {
	return it.pos < len(it.tablas)
}

// Siguiente avanza a la próxima tabla
func (it *IteradorTablas) Siguiente() {
	it.pos++
}

// Actual devuelve la tabla actual
func (it *IteradorTablas) Actual() TablaFisica {
	return it.tablas[it.pos]
}

// Cantidad devuelve cuántas tablas recorre el iterador
func (it *IteradorTablas) Cantidad() int {
	return len(it.tablas)
}
