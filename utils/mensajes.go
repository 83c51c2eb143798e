package utils

// ============================================================================
// Constantes para tipos de mensajes entre módulos
// ============================================================================
const (
	// === COMUNICACIÓN BÁSICA (1-9) ===
	MensajeHandshake = 1 // Conexión inicial

	// === MEMORIA (10-19) ===
	MensajeMemoryDump = 15 // Volcado de las páginas de usuario de un proceso

	// === HARDWARE (30-39) ===
	MensajeInterrupcion = 32 // Tick del timer

	// === NÚCLEO (40-49) ===
	MensajeSyscall       = 40 // Llamada al sistema del proceso actual
	MensajeAccesoMemoria = 41 // Lectura/escritura de usuario a través de la MMU
	MensajeEstado        = 42 // Tabla de procesos, ticks y auditoría de marcos
)

// Operaciones de syscall tal como viajan en Mensaje.Operacion
const (
	OperacionPanic     = "PANIC"
	OperacionGetPID    = "GETPID"
	OperacionYield     = "YIELD"
	OperacionPageAlloc = "PAGE_ALLOC"
	OperacionFork      = "FORK"
	OperacionExit      = "EXIT"
	OperacionKill      = "KILL"
	OperacionSleep     = "SLEEP"
)
