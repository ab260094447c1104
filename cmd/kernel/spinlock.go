package main

import (
	"runtime"
	"sync/atomic"
)

// Spinlock protege secciones críticas cortas. Adquirir enmascara las
// interrupciones de la CPU actual (anidado vía pushcli/popcli), gira hasta
// ganar la palabra de test-and-set y registra la CPU poseedora. La única
// excepción a "no dormir con locks tomados" es el lock de la tabla de
// procesos, que se mantiene a través de sched.
type Spinlock struct {
	palabra  atomic.Int32
	nombre   string
	poseedor atomic.Pointer[CPU]
}

func inicializarLock(lk *Spinlock, nombre string) {
	lk.nombre = nombre
}

// Adquirir toma el lock desde la CPU c
func (lk *Spinlock) Adquirir(c *CPU) {
	c.pushcli()
	if lk.Poseida(c) {
		panic("adquirir " + lk.nombre)
	}
	for !lk.palabra.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
	lk.poseedor.Store(c)
}

// Liberar suelta el lock desde la CPU c. Puede no ser la misma CPU que lo
// adquirió solo en el traspaso del lock de la tabla a través de sched, donde
// el poseedor sigue siendo la CPU en la que corre el hilo.
func (lk *Spinlock) Liberar(c *CPU) {
	if !lk.Poseida(c) {
		panic("liberar " + lk.nombre)
	}
	lk.poseedor.Store(nil)
	lk.palabra.Store(0)
	c.popcli()
}

// Poseida indica si la CPU c tiene tomado el lock
func (lk *Spinlock) Poseida(c *CPU) bool {
	return lk.palabra.Load() == 1 && lk.poseedor.Load() == c
}
