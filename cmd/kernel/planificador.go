package main

import (
	"runtime"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// planificador es el bucle infinito de cada CPU: con el lock de la tabla
// tomado le pide a la política un turno de despacho; si no había nada
// corrible, la CPU 0 hace avanzar el reloj para que los dormidos sobre el
// tiempo progresen.
func (k *Kernel) planificador(c *CPU) {
	utils.InfoLog.Info("Planificador iniciado", "cpu", c.id, "algoritmo", k.politica.Nombre())
	for {
		// Habilitar interrupciones en este procesador
		c.intHabilitadas = true

		if k.detenido.Load() {
			utils.InfoLog.Info("Planificador detenido", "cpu", c.id)
			return
		}

		k.ptable.lock.Adquirir(c)
		despacho := k.politica.planificarTurno(k, c)
		k.ptable.lock.Liberar(c)

		if !despacho {
			if c.id == 0 {
				k.tickReloj(c)
			}
			time.Sleep(time.Duration(k.config.RetardoTick) * time.Millisecond)
		}
	}
}

// despachar cambia a p: es trabajo del proceso liberar el lock de la tabla
// y volver a tomarlo antes de saltar de vuelta al planificador
func (k *Kernel) despachar(c *CPU, p *Proc) {
	c.proc = p
	p.cpu = c
	c.espacioActivo = p.espacio
	p.estado = EstadoRunning
	p.ticksRafaga = 0

	swtch(c.contexto, p.contexto)

	// El proceso ya corrió y cambió su estado antes de volver acá
	c.espacioActivo = nil
	c.proc = nil
}

// sched entra al planificador. Debe tenerse solo el lock de la tabla y el
// estado del proceso ya cambiado. Guarda y repone intena porque es una
// propiedad de este hilo de kernel, no de la CPU.
func (k *Kernel) sched(c *CPU, p *Proc) {
	if !k.ptable.lock.Poseida(c) {
		panic("sched ptable.lock")
	}
	if c.ncli != 1 {
		panic("sched locks")
	}
	if p.estado == EstadoRunning {
		panic("sched running")
	}
	if c.intHabilitadas {
		panic("sched interrumpible")
	}
	intena := c.intena

	if p.estado == EstadoZombie {
		// El contexto de un zombie no se reanuda nunca: soltar la CPU y
		// terminar el hilo acá mismo
		var pcs [10]uintptr
		runtime.Callers(2, pcs[:])
		p.contexto.pcs = pcs
		c.contexto.listo <- struct{}{}
		runtime.Goexit()
	}

	swtch(p.contexto, c.contexto)
	p.cpu.intena = intena
}

// ceder entrega la CPU por una vuelta de planificación
func (p *Proc) ceder() {
	k := p.k
	k.ptable.lock.Adquirir(p.cpu)
	p.estado = EstadoRunnable
	k.sched(p.cpu, p)
	k.ptable.lock.Liberar(p.cpu)
}

// forkret es el primer código que corre un proceso recién despachado.
// Llega con el lock de la tabla tomado por el planificador. En su primera
// invocación global hace la inicialización que necesita contexto de
// proceso: reponer el log del sistema de archivos y crear los demonios de
// swap.
func (k *Kernel) forkret(p *Proc) {
	k.ptable.lock.Liberar(p.cpu)

	if k.primeraVez.CompareAndSwap(false, true) {
		k.fs.IniciarLog()
		k.crearProcesoKernel(p.cpu, nombreDemonioSwapOut, k.procesoSwapOut)
		k.crearProcesoKernel(p.cpu, nombreDemonioSwapIn, k.procesoSwapIn)
		k.swapListo.Store(true)
	}
}
